package reporting

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/ducminhle1904/quantile-risk-engine/internal/backtest"
	"github.com/ducminhle1904/quantile-risk-engine/internal/portfolio"
)

const (
	colorEquity   = "#3b82f6"
	colorDrawdown = "#f87171"
	colorCash     = "#9ca3af"

	chartWidth  = "1200px"
	chartHeight = "420px"
)

// comparisonPalette colours one curve per profile
var comparisonPalette = []string{"#3b82f6", "#34d399", "#fbbf24", "#f472b6", "#a78bfa", "#22d3ee"}

// RenderEquityChart writes an HTML page with the equity and drawdown curves
func RenderEquityChart(w io.Writer, title string, equity []portfolio.EquitySnapshot) error {
	if len(equity) == 0 {
		return fmt.Errorf("no equity snapshots to chart")
	}
	xAxis := make([]string, len(equity))
	eq := make([]opts.LineData, len(equity))
	cash := make([]opts.LineData, len(equity))
	dd := make([]opts.LineData, len(equity))
	for i, s := range equity {
		xAxis[i] = s.Timestamp.Format("2006-01-02")
		eq[i] = opts.LineData{Value: rounded(s.TotalEquity, moneyPlaces)}
		cash[i] = opts.LineData{Value: rounded(s.Cash, moneyPlaces)}
		dd[i] = opts.LineData{Value: rounded(-s.Drawdown*100, 4)}
	}

	equityChart := charts.NewLine()
	equityChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: "Total equity and cash"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	equityChart.SetXAxis(xAxis).
		AddSeries("Equity", eq, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2})).
		AddSeries("Cash", cash, charts.WithLineStyleOpts(opts.LineStyle{Color: colorCash, Width: 1}))
	equityChart.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	ddChart := charts.NewLine()
	ddChart.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: "260px"}),
		charts.WithTitleOpts(opts.Title{Title: "Drawdown (%)"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)
	ddChart.SetXAxis(xAxis).
		AddSeries("Drawdown", dd,
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorDrawdown, Width: 1}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Color: colorDrawdown, Opacity: opts.Float(0.2)}),
		)
	ddChart.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))

	page := components.NewPage()
	page.PageTitle = title
	page.AddCharts(equityChart, ddChart)
	return page.Render(w)
}

// RenderComparisonChart overlays the equity curves of several runs
func RenderComparisonChart(w io.Writer, title string, results []backtest.BacktestResult) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithYAxisOpts(opts.YAxis{Scale: opts.Bool(true)}),
	)

	var xAxis []string
	series := 0
	for _, res := range results {
		if res.Error != nil || res.Results == nil {
			continue
		}
		equity := res.Results.Summary.Equity
		if len(equity) > len(xAxis) {
			xAxis = make([]string, len(equity))
			for i, s := range equity {
				xAxis[i] = s.Timestamp.Format("2006-01-02")
			}
		}
		data := make([]opts.LineData, len(equity))
		for i, s := range equity {
			data[i] = opts.LineData{Value: rounded(s.TotalEquity, moneyPlaces)}
		}
		color := comparisonPalette[series%len(comparisonPalette)]
		line.AddSeries(res.Label, data, charts.WithLineStyleOpts(opts.LineStyle{Color: color, Width: 2}))
		series++
	}
	if series == 0 {
		return fmt.Errorf("no successful runs to chart")
	}
	line.SetXAxis(xAxis)
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	return line.Render(w)
}

// WriteEquityChart writes the equity chart of a backtest run to path
func WriteEquityChart(results *backtest.BacktestResults, path string) error {
	if results == nil {
		return fmt.Errorf("no results to chart")
	}
	title := results.Label
	if title == "" {
		title = "Equity curve"
	}
	var buf bytes.Buffer
	if err := RenderEquityChart(&buf, title, results.Summary.Equity); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}

// WriteComparisonChart writes the profile comparison chart to path
func WriteComparisonChart(results []backtest.BacktestResult, path string) error {
	var buf bytes.Buffer
	if err := RenderComparisonChart(&buf, "Profile comparison", results); err != nil {
		return err
	}
	return writeFile(path, buf.Bytes())
}
