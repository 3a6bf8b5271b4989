package reporting

import (
	"encoding/csv"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
)

// Rounding applied to exported figures
const (
	moneyPlaces    = 2
	pricePlaces    = 4
	quantityPlaces = 6
	ratioPlaces    = 6
)

var tradeHeader = []string{
	"Trade_ID",
	"Timestamp",
	"Symbol",
	"Side",
	"Position_Side",
	"Quantity",
	"Entry_Price",
	"Exit_Price",
	"Realized_PnL",
	"Commission",
	"Slippage",
	"Reason",
}

// DefaultCSVReporter implements CSV output functionality
type DefaultCSVReporter struct{}

// NewDefaultCSVReporter creates a new CSV reporter
func NewDefaultCSVReporter() *DefaultCSVReporter {
	return &DefaultCSVReporter{}
}

// WriteTradesCSV writes the trade ledger with one row per fill and a
// closing summary row
func (r *DefaultCSVReporter) WriteTradesCSV(summary engine.Summary, path string) error {
	if err := ensureParent(path); err != nil {
		return err
	}
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return NewDefaultExcelReporter().writeSummaryWorkbook(summary, nil, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(tradeHeader); err != nil {
		return err
	}

	totalPnL := decimal.Zero
	totalCosts := decimal.Zero
	for _, t := range summary.Trades {
		if err := w.Write(tradeRow(t)); err != nil {
			return err
		}
		totalPnL = totalPnL.Add(money(t.RealizedPnL))
		totalCosts = totalCosts.Add(money(t.Commission)).Add(money(t.Slippage))
	}

	totals := make([]string, len(tradeHeader))
	totals[0] = "TOTAL"
	totals[8] = totalPnL.StringFixed(moneyPlaces)
	totals[9] = totalCosts.StringFixed(moneyPlaces)
	if err := w.Write(totals); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func tradeRow(t portfolio.Trade) []string {
	exit := ""
	if t.ExitPrice != nil {
		exit = fixed(*t.ExitPrice, pricePlaces)
	}
	return []string{
		t.ID,
		t.Timestamp.Format("2006-01-02 15:04:05"),
		t.Symbol,
		string(t.Side),
		string(t.PositionSide),
		fixed(t.Quantity, quantityPlaces),
		fixed(t.EntryPrice, pricePlaces),
		exit,
		fixed(t.RealizedPnL, moneyPlaces),
		fixed(t.Commission, moneyPlaces),
		fixed(t.Slippage, moneyPlaces),
		string(t.Reason),
	}
}

func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(moneyPlaces)
}

func fixed(v float64, places int32) string {
	return decimal.NewFromFloat(v).StringFixed(places)
}

// rounded returns v rounded half away from zero to places
func rounded(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// WriteTradesCSV is a convenience wrapper around the default CSV reporter
func WriteTradesCSV(summary engine.Summary, path string) error {
	return NewDefaultCSVReporter().WriteTradesCSV(summary, path)
}
