package server

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/caevv/bddash/internal/trend"
)

const (
	chartWidth  = 640
	chartHeight = 200
	chartPadX   = 40
	chartPadY   = 20
)

// trendChart renders points as an inline SVG line chart of pass rate per
// day. Only numbers and ISO dates reach the markup.
func trendChart(points []trend.Point) template.HTML {
	if len(points) == 0 {
		return ""
	}

	plotW := float64(chartWidth - 2*chartPadX)
	plotH := float64(chartHeight - 2*chartPadY)

	x := func(i int) float64 {
		if len(points) == 1 {
			return chartPadX + plotW/2
		}
		return chartPadX + plotW*float64(i)/float64(len(points)-1)
	}
	y := func(rate int) float64 {
		return chartPadY + plotH*(1-float64(rate)/100)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg class="trend" viewBox="0 0 %d %d" role="img" aria-label="Daily pass rate">`, chartWidth, chartHeight)

	for _, rate := range []int{0, 50, 100} {
		fmt.Fprintf(&b, `<line class="grid" x1="%d" x2="%d" y1="%.1f" y2="%.1f"/>`, chartPadX, chartWidth-chartPadX, y(rate), y(rate))
		fmt.Fprintf(&b, `<text class="axis" x="%d" y="%.1f" text-anchor="end">%d%%</text>`, chartPadX-6, y(rate)+4, rate)
	}

	coords := make([]string, len(points))
	for i, p := range points {
		coords[i] = fmt.Sprintf("%.1f,%.1f", x(i), y(p.PassRate))
	}
	fmt.Fprintf(&b, `<polyline class="line" fill="none" points="%s"/>`, strings.Join(coords, " "))

	for i, p := range points {
		fmt.Fprintf(&b, `<circle class="dot" cx="%.1f" cy="%.1f" r="4"><title>%s: %d%% (%d/%d scenarios, %d runs)</title></circle>`,
			x(i), y(p.PassRate), p.Label(), p.PassRate, p.Passed, p.Total, p.Runs)
	}

	first, last := points[0], points[len(points)-1]
	fmt.Fprintf(&b, `<text class="axis" x="%.1f" y="%d" text-anchor="start">%s</text>`, x(0), chartHeight-2, first.Label())
	if len(points) > 1 {
		fmt.Fprintf(&b, `<text class="axis" x="%.1f" y="%d" text-anchor="end">%s</text>`, x(len(points)-1), chartHeight-2, last.Label())
	}

	b.WriteString(`</svg>`)
	return template.HTML(b.String())
}
