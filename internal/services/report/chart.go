package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/surveylens/internal/services/insights"
)

// ErrNoChartData is returned when a chart would have nothing to plot.
var ErrNoChartData = errors.New("no chart data")

// Chart names
const (
	ChartSentiment = "sentiment"
	ChartTopics    = "topics"
	ChartPriority  = "priority"
)

// ChartNames lists every chart in display order.
var ChartNames = []string{ChartSentiment, ChartTopics, ChartPriority}

var (
	sentimentColors = map[string]drawing.Color{
		insights.LabelPositive: drawing.ColorFromHex("10b981"), // emerald-500
		insights.LabelNegative: drawing.ColorFromHex("ef4444"), // red-500
		insights.LabelNeutral:  drawing.ColorFromHex("6b7280"), // gray-500
	}
	priorityColors = map[string]drawing.Color{
		"high":   drawing.ColorFromHex("ef4444"),
		"medium": drawing.ColorFromHex("f59e0b"), // amber-500
		"low":    drawing.ColorFromHex("10b981"),
	}
	barColor = drawing.ColorFromHex("2563eb") // blue-600
)

// RenderChart renders the named chart as PNG.
func RenderChart(name string, v *insights.View) ([]byte, error) {
	switch name {
	case ChartSentiment:
		return RenderSentimentChart(v)
	case ChartTopics:
		return RenderTopicsChart(v)
	case ChartPriority:
		return RenderPriorityChart(v)
	default:
		return nil, fmt.Errorf("unknown chart %q", name)
	}
}

// RenderSentimentChart renders the sentiment donut. Zero-valued classes are
// left out.
func RenderSentimentChart(v *insights.View) ([]byte, error) {
	if !v.ShowSentimentChart() {
		return nil, ErrNoChartData
	}
	var values []chart.Value
	for _, s := range v.Sentiment.Slices {
		if s.Value == 0 {
			continue
		}
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s %s", s.Name, s.Label),
			Value: float64(s.Value),
			Style: chart.Style{FillColor: sentimentColors[s.Name], StrokeColor: drawing.ColorWhite, StrokeWidth: 2},
		})
	}

	graph := chart.DonutChart{
		Title:  "Sentiment Distribution",
		Width:  512,
		Height: 512,
		Values: values,
	}
	return renderPNG(&graph)
}

// RenderTopicsChart renders the top topics as a bar chart.
func RenderTopicsChart(v *insights.View) ([]byte, error) {
	if !v.ShowTopicsChart() {
		return nil, ErrNoChartData
	}
	bars := make([]chart.Value, 0, len(v.ChartTopics))
	top := 0.0
	for _, t := range v.ChartTopics {
		bars = append(bars, chart.Value{
			Label: t.Label,
			Value: t.Value,
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor},
		})
		top = max(top, t.Value)
	}
	if top <= 0 {
		return nil, ErrNoChartData
	}

	graph := chart.BarChart{
		Title:      "Top Topics",
		Width:      900,
		Height:     420,
		BarWidth:   70,
		BarSpacing: 40,
		Background: chart.Style{
			Padding: chart.Box{Top: 50, Left: 10, Right: 20, Bottom: 10},
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.0f", f)
				}
				return ""
			},
		},
		Bars: bars,
	}
	return renderPNG(&graph)
}

// RenderPriorityChart renders open problems by priority as a pie.
func RenderPriorityChart(v *insights.View) ([]byte, error) {
	if !v.ShowPriorityChart() {
		return nil, ErrNoChartData
	}
	values := make([]chart.Value, 0, len(v.Priorities))
	for _, p := range v.Priorities {
		values = append(values, chart.Value{
			Label: fmt.Sprintf("%s (%d)", p.Priority, p.Count),
			Value: float64(p.Count),
			Style: chart.Style{FillColor: priorityColors[p.Priority], StrokeColor: drawing.ColorWhite, StrokeWidth: 2},
		})
	}

	graph := chart.PieChart{
		Title:  "Problems by Priority",
		Width:  512,
		Height: 512,
		Values: values,
	}
	return renderPNG(&graph)
}

type pngRenderer interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

func renderPNG(c pngRenderer) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}
	return buf.Bytes(), nil
}
