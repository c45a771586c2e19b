// Package chart renders time-series line charts as PNG images for chat
// attachments.
package chart

import (
	"bytes"
	"fmt"
	"time"

	gochart "github.com/wcharczuk/go-chart/v2"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
)

// Default canvas size in pixels
const (
	DefaultWidth  = 1024
	DefaultHeight = 512
)

// Series is one named line
type Series struct {
	Name   string
	Times  []time.Time
	Values []float64
}

// Options controls titles and value formatting
type Options struct {
	Title string
	// DateOnly formats the x axis as dates rather than times of day
	DateOnly bool
	// YFormat formats y axis ticks, e.g. "$%.2f"
	YFormat string
}

// LinePNG draws every series on one set of axes
func LinePNG(series []Series, opts Options) ([]byte, error) {
	if len(series) == 0 {
		return nil, apperrors.NewValidation("not enough data to chart")
	}

	var (
		minT, maxT time.Time
		minY, maxY float64
		first      = true
	)
	lines := make([]gochart.Series, 0, len(series))
	for i, s := range series {
		if len(s.Times) != len(s.Values) {
			return nil, fmt.Errorf("series %q has %d times and %d values", s.Name, len(s.Times), len(s.Values))
		}
		for j, t := range s.Times {
			v := s.Values[j]
			if first {
				minT, maxT, minY, maxY = t, t, v, v
				first = false
				continue
			}
			if t.Before(minT) {
				minT = t
			}
			if t.After(maxT) {
				maxT = t
			}
			if v < minY {
				minY = v
			}
			if v > maxY {
				maxY = v
			}
		}

		lines = append(lines, gochart.TimeSeries{
			Name:    s.Name,
			XValues: s.Times,
			YValues: s.Values,
			Style: gochart.Style{
				StrokeColor: gochart.GetDefaultColor(i),
				StrokeWidth: 2,
			},
		})
	}

	if first || !maxT.After(minT) {
		return nil, apperrors.NewValidation("not enough data to chart")
	}

	xFormatter := gochart.TimeMinuteValueFormatter
	if opts.DateOnly {
		xFormatter = gochart.TimeDateValueFormatter
	}

	yAxis := gochart.YAxis{}
	if opts.YFormat != "" {
		format := opts.YFormat
		yAxis.ValueFormatter = func(v interface{}) string {
			if f, ok := v.(float64); ok {
				return fmt.Sprintf(format, f)
			}
			return ""
		}
	}
	if maxY == minY {
		// go-chart refuses a zero-height range
		yAxis.Range = &gochart.ContinuousRange{Min: minY, Max: minY + 1}
	}

	graph := gochart.Chart{
		Title:  opts.Title,
		Width:  DefaultWidth,
		Height: DefaultHeight,
		Background: gochart.Style{
			Padding: gochart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
		},
		XAxis:  gochart.XAxis{ValueFormatter: xFormatter},
		YAxis:  yAxis,
		Series: lines,
	}
	if len(lines) > 1 {
		graph.Elements = []gochart.Renderable{gochart.LegendLeft(&graph)}
	}

	var buf bytes.Buffer
	if err := graph.Render(gochart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render chart: %w", err)
	}
	return buf.Bytes(), nil
}
