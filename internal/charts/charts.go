// Package charts rasterizes the analysis aggregations into PNG images
// encoded as data URIs. Every call builds its own chart values and
// renders into its own buffer, so concurrent requests never share
// drawing state and nothing survives past the returned string.
package charts

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"fintrack/internal/core"
)

// ErrNoData is returned when a chart is requested for an empty
// aggregation. Callers omit the chart instead of rendering one.
var ErrNoData = errors.New("no data to chart")

var (
	incomeColor  = drawing.Color{R: 0x2e, G: 0x8b, B: 0x57, A: 0xff} // green
	expenseColor = drawing.Color{R: 0xc0, G: 0x39, B: 0x2b, A: 0xff} // red
)

// ExpensePie renders one slice per category with the category name and
// its share of the expense total in the label. Percentages are computed
// on exact cents; floats appear only in the rendered output.
func ExpensePie(byCategory []core.CategoryAmount) (string, error) {
	if len(byCategory) == 0 {
		return "", ErrNoData
	}

	var totalCents int64
	for _, ca := range byCategory {
		totalCents += ca.Amount.Cents
	}
	if totalCents <= 0 {
		return "", ErrNoData
	}

	values := make([]chart.Value, 0, len(byCategory))
	for _, ca := range byCategory {
		pct := float64(ca.Amount.Cents) * 100 / float64(totalCents)
		values = append(values, chart.Value{
			Value: ca.Amount.Float64(),
			Label: fmt.Sprintf("%s %.1f%%", ca.Name, pct),
		})
	}

	pie := chart.PieChart{
		Width:  512,
		Height: 512,
		Values: values,
	}

	var buf bytes.Buffer
	if err := pie.Render(chart.PNG, &buf); err != nil {
		return "", fmt.Errorf("render pie chart: %w", err)
	}
	return dataURI(buf.Bytes()), nil
}

// MonthlyBars renders side-by-side income and expense bars per month,
// chronologically, with the month on the x axis and a legend on top.
func MonthlyBars(flows []core.MonthlyFlow) (string, error) {
	if len(flows) == 0 {
		return "", ErrNoData
	}

	bars := make([]chart.Value, 0, len(flows)*2)
	for _, f := range flows {
		bars = append(bars,
			chart.Value{
				Value: f.Income.Float64(),
				Label: f.Month,
				Style: chart.Style{FillColor: incomeColor, StrokeColor: incomeColor},
			},
			chart.Value{
				Value: f.Expense.Float64(),
				Style: chart.Style{FillColor: expenseColor, StrokeColor: expenseColor},
			},
		)
	}

	width := 640
	if len(flows) > 6 {
		width = 1024
	}

	bc := chart.BarChart{
		Width:      width,
		Height:     512,
		BarWidth:   30,
		BarSpacing: 12,
		Background: chart.Style{Padding: chart.Box{Top: 48}},
		Bars:       bars,
		Elements: []chart.Renderable{
			legend([]legendEntry{
				{name: "Income", color: incomeColor},
				{name: "Expense", color: expenseColor},
			}),
		},
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return "", fmt.Errorf("render bar chart: %w", err)
	}
	return dataURI(buf.Bytes()), nil
}

type legendEntry struct {
	name  string
	color drawing.Color
}

// legend draws color swatches with labels in the top-left of the
// canvas. BarChart has no built-in legend, so this fills the gap.
func legend(entries []legendEntry) chart.Renderable {
	return func(r chart.Renderer, box chart.Box, defaults chart.Style) {
		const swatch = 12
		font, err := chart.GetDefaultFont()
		if err != nil {
			return
		}
		r.SetFont(font)
		r.SetFontSize(10)
		r.SetFontColor(chart.DefaultTextColor)

		x := box.Left + 8
		y := box.Top + 8
		for _, e := range entries {
			r.SetFillColor(e.color)
			r.MoveTo(x, y)
			r.LineTo(x+swatch, y)
			r.LineTo(x+swatch, y+swatch)
			r.LineTo(x, y+swatch)
			r.Close()
			r.Fill()

			r.Text(e.name, x+swatch+5, y+swatch-1)
			x += swatch + 5 + r.MeasureText(e.name).Width() + 16
		}
	}
}

func dataURI(png []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
}
