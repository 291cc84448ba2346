package dashboard

import (
	"bytes"
	"fmt"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/jaam8/lingua_bot/internal/models"
)

const (
	chartWidth  = 800
	chartHeight = 400
	margin      = 50.0
)

var (
	barColor  = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	axisColor = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

// BarChart draws a labelled bar chart as PNG. An empty series renders the axes only.
func BarChart(title, yLabel string, labels []string, values []float64) ([]byte, error) {
	if len(labels) != len(values) {
		return nil, fmt.Errorf("dashboard: %d labels for %d values", len(labels), len(values))
	}
	dc := gg.NewContext(chartWidth, chartHeight)
	dc.SetColor(color.White)
	dc.Clear()

	dc.SetColor(axisColor)
	dc.DrawStringAnchored(title, chartWidth/2, margin/2, 0.5, 0.5)
	dc.DrawStringAnchored(yLabel, 10, margin/2, 0, 0.5)
	dc.SetLineWidth(1)
	dc.DrawLine(margin, margin, margin, chartHeight-margin)
	dc.DrawLine(margin, chartHeight-margin, chartWidth-margin/2, chartHeight-margin)
	dc.Stroke()

	maxVal := 0.0
	for _, v := range values {
		maxVal = math.Max(maxVal, v)
	}
	if len(values) > 0 && maxVal > 0 {
		plotW := chartWidth - margin*1.5
		plotH := chartHeight - margin*2
		slot := plotW / float64(len(values))
		barW := slot * 0.7
		for i, v := range values {
			h := v / maxVal * plotH
			x := margin + float64(i)*slot + (slot-barW)/2
			y := chartHeight - margin - h
			dc.SetColor(barColor)
			dc.DrawRectangle(x, y, barW, h)
			dc.Fill()
			dc.SetColor(axisColor)
			dc.DrawStringAnchored(fmt.Sprintf("%.2f", v), x+barW/2, y-8, 0.5, 0)
			dc.DrawStringAnchored(labels[i], x+barW/2, chartHeight-margin+14, 0.5, 0.5)
		}
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("dashboard: encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func DailyChart(daily []models.DailyCost) ([]byte, error) {
	labels := make([]string, len(daily))
	values := make([]float64, len(daily))
	for i, d := range daily {
		labels[i] = d.Day.Format("01-02")
		values[i] = d.Cost
	}
	return BarChart("Daily Cost", "Cost ($)", labels, values)
}

func ModelChart(costs []models.ModelCost) ([]byte, error) {
	labels := make([]string, len(costs))
	values := make([]float64, len(costs))
	for i, m := range costs {
		labels[i] = m.Model
		values[i] = m.Cost
	}
	return BarChart("Cost by Model", "Cost ($)", labels, values)
}
