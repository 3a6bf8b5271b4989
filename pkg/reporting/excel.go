package reporting

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/ducminhle1904/quantile-risk-engine/internal/backtest"
	"github.com/ducminhle1904/quantile-risk-engine/internal/engine"
)

// Workbook sheet names
const (
	SheetSummary    = "Summary"
	SheetTrades     = "Trades"
	SheetEquity     = "Equity"
	SheetViolations = "Violations"
)

// DefaultExcelReporter implements Excel output functionality
type DefaultExcelReporter struct{}

// NewDefaultExcelReporter creates a new Excel reporter
func NewDefaultExcelReporter() *DefaultExcelReporter {
	return &DefaultExcelReporter{}
}

// WriteTradesXLSX writes a workbook with Summary, Trades, Equity and
// Violations sheets
func (r *DefaultExcelReporter) WriteTradesXLSX(results *backtest.BacktestResults, path string) error {
	if results == nil {
		return fmt.Errorf("no results to write")
	}
	return r.writeSummaryWorkbook(results.Summary, results, path)
}

// WriteSessionXLSX writes the workbook for a session summary
func (r *DefaultExcelReporter) WriteSessionXLSX(summary engine.Summary, path string) error {
	return r.writeSummaryWorkbook(summary, nil, path)
}

func (r *DefaultExcelReporter) writeSummaryWorkbook(summary engine.Summary, results *backtest.BacktestResults, path string) error {
	if err := ensureParent(path); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	fx := excelize.NewFile()
	defer fx.Close()

	if err := fx.SetSheetName(fx.GetSheetName(0), SheetSummary); err != nil {
		return err
	}
	for _, name := range []string{SheetTrades, SheetEquity, SheetViolations} {
		if _, err := fx.NewSheet(name); err != nil {
			return err
		}
	}

	styles, err := r.createExcelStyles(fx)
	if err != nil {
		return err
	}

	if err := r.writeSummarySheet(fx, SheetSummary, summary, results, styles); err != nil {
		return err
	}
	if err := r.writeTradesSheet(fx, SheetTrades, summary, styles); err != nil {
		return err
	}
	if err := r.writeEquitySheet(fx, SheetEquity, summary, styles); err != nil {
		return err
	}
	if err := r.writeViolationsSheet(fx, SheetViolations, summary, styles); err != nil {
		return err
	}

	fx.SetActiveSheet(0)
	return fx.SaveAs(path)
}

func (r *DefaultExcelReporter) createExcelStyles(fx *excelize.File) (ExcelStyles, error) {
	var styles ExcelStyles
	var err error

	cellBorder := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}
	right := &excelize.Alignment{Horizontal: "right"}
	priceFmt := "#,##0.0000"
	qtyFmt := "#,##0.000000"
	dateFmt := "yyyy-mm-dd hh:mm"

	// Header: dark slate background, white bold text
	styles.HeaderStyle, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return styles, err
	}

	if styles.CurrencyStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 7, Alignment: right, Border: cellBorder}); err != nil {
		return styles, err
	}
	if styles.PriceStyle, err = fx.NewStyle(&excelize.Style{CustomNumFmt: &priceFmt, Alignment: right, Border: cellBorder}); err != nil {
		return styles, err
	}
	if styles.QuantityStyle, err = fx.NewStyle(&excelize.Style{CustomNumFmt: &qtyFmt, Alignment: right, Border: cellBorder}); err != nil {
		return styles, err
	}
	if styles.PercentStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 10, Alignment: right, Border: cellBorder}); err != nil {
		return styles, err
	}
	if styles.BaseStyle, err = fx.NewStyle(&excelize.Style{Border: cellBorder}); err != nil {
		return styles, err
	}
	if styles.DateStyle, err = fx.NewStyle(&excelize.Style{CustomNumFmt: &dateFmt, Border: cellBorder}); err != nil {
		return styles, err
	}
	if styles.RedPercentStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 10, Font: &excelize.Font{Color: "C00000"}, Alignment: right, Border: cellBorder}); err != nil {
		return styles, err
	}
	if styles.GreenPercentStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 10, Font: &excelize.Font{Color: "008000"}, Alignment: right, Border: cellBorder}); err != nil {
		return styles, err
	}
	if styles.RedCurrencyStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 7, Font: &excelize.Font{Color: "C00000"}, Alignment: right, Border: cellBorder}); err != nil {
		return styles, err
	}
	if styles.GreenCurrencyStyle, err = fx.NewStyle(&excelize.Style{NumFmt: 7, Font: &excelize.Font{Color: "008000"}, Alignment: right, Border: cellBorder}); err != nil {
		return styles, err
	}
	styles.SummaryStyle, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"F2F2F2"}, Pattern: 1},
		Border: cellBorder,
	})
	return styles, err
}

func (r *DefaultExcelReporter) writeHeader(fx *excelize.File, sheet string, headers []string, styles ExcelStyles) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := fx.SetCellStyle(sheet, cell, cell, styles.HeaderStyle); err != nil {
			return err
		}
	}
	return fx.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}

// setRow writes values starting at column A of row with one style per cell
func setRow(fx *excelize.File, sheet string, row int, values []interface{}, cellStyles []int) error {
	for i, v := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(sheet, cell, v); err != nil {
			return err
		}
		if i < len(cellStyles) && cellStyles[i] != 0 {
			if err := fx.SetCellStyle(sheet, cell, cell, cellStyles[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeSummarySheet(fx *excelize.File, sheet string, s engine.Summary, results *backtest.BacktestResults, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 24)
	fx.SetColWidth(sheet, "B", "B", 22)
	if err := r.writeHeader(fx, sheet, []string{"Metric", "Value"}, styles); err != nil {
		return err
	}

	type entry struct {
		name  string
		value interface{}
		style int
	}
	m := s.Metrics
	signed := func(v float64) int {
		if v < 0 {
			return styles.RedPercentStyle
		}
		return styles.GreenPercentStyle
	}
	entries := []entry{
		{"Run ID", s.RunID, styles.BaseStyle},
		{"Profile", s.Profile, styles.BaseStyle},
	}
	if results != nil {
		entries = append(entries,
			entry{"Label", results.Label, styles.BaseStyle},
			entry{"Start Date", results.StartDate, styles.DateStyle},
			entry{"End Date", results.EndDate, styles.DateStyle},
			entry{"Trading Days", results.Days, styles.BaseStyle},
			entry{"Liquidated", results.Liquidated, styles.BaseStyle},
		)
	}
	entries = append(entries,
		entry{"Initial Capital", rounded(s.InitialCapital, moneyPlaces), styles.CurrencyStyle},
		entry{"Final Capital", rounded(s.FinalCapital, moneyPlaces), styles.CurrencyStyle},
		entry{"Total Return", s.TotalReturn, signed(s.TotalReturn)},
		entry{"Annualized Return", m.AnnualizedReturn, signed(m.AnnualizedReturn)},
		entry{"Volatility", m.Volatility, styles.PercentStyle},
		entry{"Max Drawdown", m.MaxDrawdown, styles.RedPercentStyle},
		entry{"Sharpe Ratio", rounded(m.SharpeRatio, 4), styles.BaseStyle},
		entry{"Sortino Ratio", rounded(m.SortinoRatio, 4), styles.BaseStyle},
		entry{"Calmar Ratio", rounded(m.CalmarRatio, 4), styles.BaseStyle},
		entry{"VaR 95%", m.VaR95, styles.PercentStyle},
		entry{"CVaR 95%", m.CVaR95, styles.PercentStyle},
		entry{"VaR 99%", m.VaR99, styles.PercentStyle},
		entry{"CVaR 99%", m.CVaR99, styles.PercentStyle},
		entry{"Total Trades", m.TotalTrades, styles.BaseStyle},
		entry{"Closed Trades", m.ClosedTrades, styles.BaseStyle},
		entry{"Win Rate", m.WinRate, styles.PercentStyle},
		entry{"Profit Factor", rounded(m.ProfitFactor, 4), styles.BaseStyle},
		entry{"Average Win", rounded(m.AverageWin, moneyPlaces), styles.CurrencyStyle},
		entry{"Average Loss", rounded(m.AverageLoss, moneyPlaces), styles.CurrencyStyle},
		entry{"Max Exposure", m.MaxExposure, styles.PercentStyle},
		entry{"Avg Exposure", m.AvgExposure, styles.PercentStyle},
		entry{"Turnover", rounded(m.Turnover, 4), styles.BaseStyle},
		entry{"Commission", rounded(m.TotalCommission, moneyPlaces), styles.CurrencyStyle},
		entry{"Slippage", rounded(m.TotalSlippage, moneyPlaces), styles.CurrencyStyle},
		entry{"Violations", len(s.Violations), styles.BaseStyle},
		entry{"Open Positions", s.OpenPositions, styles.BaseStyle},
	)

	for i, e := range entries {
		if err := setRow(fx, sheet, i+2, []interface{}{e.name, e.value}, []int{styles.SummaryStyle, e.style}); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeTradesSheet(fx *excelize.File, sheet string, s engine.Summary, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 38) // ID
	fx.SetColWidth(sheet, "B", "B", 18) // Timestamp
	fx.SetColWidth(sheet, "C", "E", 10) // Symbol, Side, Position
	fx.SetColWidth(sheet, "F", "H", 14) // Quantity, Entry, Exit
	fx.SetColWidth(sheet, "I", "K", 13) // PnL, Commission, Slippage
	fx.SetColWidth(sheet, "L", "L", 14) // Reason

	headers := []string{"Trade ID", "Timestamp", "Symbol", "Side", "Position", "Quantity", "Entry Price", "Exit Price", "Realized PnL", "Commission", "Slippage", "Reason"}
	if err := r.writeHeader(fx, sheet, headers, styles); err != nil {
		return err
	}

	for i, t := range s.Trades {
		var exit interface{}
		if t.ExitPrice != nil {
			exit = rounded(*t.ExitPrice, pricePlaces)
		}
		pnlStyle := styles.CurrencyStyle
		if t.IsClose() {
			pnlStyle = styles.GreenCurrencyStyle
			if t.RealizedPnL < 0 {
				pnlStyle = styles.RedCurrencyStyle
			}
		}
		values := []interface{}{
			t.ID, t.Timestamp, t.Symbol, string(t.Side), string(t.PositionSide),
			rounded(t.Quantity, quantityPlaces), rounded(t.EntryPrice, pricePlaces), exit,
			rounded(t.RealizedPnL, moneyPlaces), rounded(t.Commission, moneyPlaces), rounded(t.Slippage, moneyPlaces),
			string(t.Reason),
		}
		cellStyles := []int{
			styles.BaseStyle, styles.DateStyle, styles.BaseStyle, styles.BaseStyle, styles.BaseStyle,
			styles.QuantityStyle, styles.PriceStyle, styles.PriceStyle,
			pnlStyle, styles.CurrencyStyle, styles.CurrencyStyle,
			styles.BaseStyle,
		}
		if err := setRow(fx, sheet, i+2, values, cellStyles); err != nil {
			return err
		}
	}

	if len(s.Trades) > 0 {
		row := len(s.Trades) + 2
		total := money(0)
		for _, t := range s.Trades {
			total = total.Add(money(t.RealizedPnL))
		}
		values := []interface{}{"TOTAL", nil, nil, nil, nil, nil, nil, nil, total.InexactFloat64()}
		cellStyles := []int{styles.SummaryStyle, styles.SummaryStyle, styles.SummaryStyle, styles.SummaryStyle, styles.SummaryStyle, styles.SummaryStyle, styles.SummaryStyle, styles.SummaryStyle, styles.CurrencyStyle}
		if err := setRow(fx, sheet, row, values, cellStyles); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeEquitySheet(fx *excelize.File, sheet string, s engine.Summary, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 18)
	fx.SetColWidth(sheet, "B", "F", 15)

	headers := []string{"Timestamp", "Cash", "Positions Value", "Total Equity", "Gross Exposure", "Drawdown"}
	if err := r.writeHeader(fx, sheet, headers, styles); err != nil {
		return err
	}
	for i, e := range s.Equity {
		values := []interface{}{
			e.Timestamp,
			rounded(e.Cash, moneyPlaces),
			rounded(e.PositionsValue, moneyPlaces),
			rounded(e.TotalEquity, moneyPlaces),
			rounded(e.GrossExposure, moneyPlaces),
			e.Drawdown,
		}
		ddStyle := styles.PercentStyle
		if e.Drawdown > 0 {
			ddStyle = styles.RedPercentStyle
		}
		cellStyles := []int{styles.DateStyle, styles.CurrencyStyle, styles.CurrencyStyle, styles.CurrencyStyle, styles.CurrencyStyle, ddStyle}
		if err := setRow(fx, sheet, i+2, values, cellStyles); err != nil {
			return err
		}
	}
	return nil
}

func (r *DefaultExcelReporter) writeViolationsSheet(fx *excelize.File, sheet string, s engine.Summary, styles ExcelStyles) error {
	fx.SetColWidth(sheet, "A", "A", 18)
	fx.SetColWidth(sheet, "B", "B", 22)
	fx.SetColWidth(sheet, "C", "C", 10)
	fx.SetColWidth(sheet, "D", "D", 60)

	if err := r.writeHeader(fx, sheet, []string{"Timestamp", "Rule", "Symbol", "Detail"}, styles); err != nil {
		return err
	}
	for i, v := range s.Violations {
		symbol := ""
		if v.Order != nil {
			symbol = v.Order.Symbol
		}
		values := []interface{}{v.Timestamp, string(v.Rule), symbol, v.Detail}
		cellStyles := []int{styles.DateStyle, styles.BaseStyle, styles.BaseStyle, styles.BaseStyle}
		if err := setRow(fx, sheet, i+2, values, cellStyles); err != nil {
			return err
		}
	}

	if len(s.Violations) == 0 {
		return nil
	}
	// per-rule tally to the right of the log
	counts := make(map[string]int)
	for _, v := range s.Violations {
		counts[string(v.Rule)]++
	}
	rules := make([]string, 0, len(counts))
	for rule := range counts {
		rules = append(rules, rule)
	}
	sort.Strings(rules)
	fx.SetColWidth(sheet, "F", "F", 22)
	for i, h := range []string{"Rule", "Count"} {
		cell, _ := excelize.CoordinatesToCellName(6+i, 1)
		fx.SetCellValue(sheet, cell, h)
		fx.SetCellStyle(sheet, cell, cell, styles.HeaderStyle)
	}
	for i, rule := range rules {
		ruleCell, _ := excelize.CoordinatesToCellName(6, i+2)
		countCell, _ := excelize.CoordinatesToCellName(7, i+2)
		fx.SetCellValue(sheet, ruleCell, rule)
		fx.SetCellStyle(sheet, ruleCell, ruleCell, styles.SummaryStyle)
		fx.SetCellValue(sheet, countCell, counts[rule])
	}
	return nil
}

// WriteTradesXLSX is a convenience wrapper around the default Excel reporter
func WriteTradesXLSX(results *backtest.BacktestResults, path string) error {
	return NewDefaultExcelReporter().WriteTradesXLSX(results, path)
}
