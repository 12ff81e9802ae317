package chart

import (
	"fmt"
	"math"
	"strings"
	"time"

	"BreakoutScanner/internal/model"
)

// Plot glyphs.
const (
	PriceGlyph    = '*'
	SmoothedGlyph = '.'
	MarkerGlyph   = '^'
)

// Point is one chart sample.
type Point struct {
	Time     time.Time `json:"time"`
	Price    float64   `json:"price"`
	Smoothed float64   `json:"smoothed"`
}

// Chart holds the price line, the smoothed line and crossover markers for one ticker.
type Chart struct {
	Symbol  string  `json:"symbol"`
	Span    int     `json:"span"`
	Points  []Point `json:"points"`
	Markers []Point `json:"markers"`
}

// New builds chart data from an annotated series.
func New(series model.AnnotatedSeries) Chart {
	c := Chart{
		Symbol:  series.Symbol,
		Span:    series.Span,
		Points:  make([]Point, len(series.Points)),
		Markers: []Point{},
	}
	for i, p := range series.Points {
		pt := Point{Time: p.Time, Price: p.Close, Smoothed: p.Smoothed}
		c.Points[i] = pt
		if p.Crossover {
			c.Markers = append(c.Markers, pt)
		}
	}
	return c
}

// Legend names the glyphs used by Render.
func (c Chart) Legend() string {
	return fmt.Sprintf("%c Price   %c EMA%d   %c Buy Signal", PriceGlyph, SmoothedGlyph, c.Span, MarkerGlyph)
}

// Render draws the chart as text at most width columns wide (axis included) and height rows tall.
func (c Chart) Render(width, height int) string {
	if len(c.Points) == 0 {
		return model.NoDataMessage
	}
	if height < 3 {
		height = 3
	}

	lo, hi := c.bounds()
	loLabel, hiLabel := model.Fixed2(lo), model.Fixed2(hi)
	axisWidth := len(loLabel)
	if len(hiLabel) > axisWidth {
		axisWidth = len(hiLabel)
	}
	plotWidth := width - axisWidth - 2
	if plotWidth < 10 {
		plotWidth = 10
	}
	cols := sample(len(c.Points), plotWidth)

	grid := make([][]rune, height)
	for r := range grid {
		grid[r] = []rune(strings.Repeat(" ", len(cols)))
	}
	markers := make(map[time.Time]bool, len(c.Markers))
	for _, m := range c.Markers {
		markers[m.Time] = true
	}
	row := func(v float64) int {
		if hi == lo {
			return height / 2
		}
		return int(math.Round((hi - v) / (hi - lo) * float64(height-1)))
	}
	for x, idx := range cols {
		// column x stands for every point after the previous column up to idx;
		// a crossover anywhere in that bucket is drawn instead of the sampled point
		from := 0
		if x > 0 {
			from = cols[x-1] + 1
		}
		marked := false
		for i := from; i <= idx; i++ {
			if markers[c.Points[i].Time] {
				idx, marked = i, true
				break
			}
		}
		p := c.Points[idx]
		grid[row(p.Smoothed)][x] = SmoothedGlyph
		glyph := PriceGlyph
		if marked {
			glyph = MarkerGlyph
		}
		grid[row(p.Price)][x] = glyph
	}

	var sb strings.Builder
	for r, line := range grid {
		label := ""
		switch r {
		case 0:
			label = hiLabel
		case height - 1:
			label = loLabel
		}
		sb.WriteString(fmt.Sprintf("%*s |%s\n", axisWidth, label, strings.TrimRight(string(line), " ")))
	}
	sb.WriteString(fmt.Sprintf("%*s +%s\n", axisWidth, "", strings.Repeat("-", len(cols))))

	first := c.Points[0].Time.Format("2006-01-02")
	last := c.Points[len(c.Points)-1].Time.Format("2006-01-02")
	gap := len(cols) - len(first) - len(last)
	if gap < 1 {
		gap = 1
	}
	sb.WriteString(fmt.Sprintf("%*s  %s%s%s", axisWidth, "", first, strings.Repeat(" ", gap), last))
	return sb.String()
}

func (c Chart) bounds() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range c.Points {
		lo = math.Min(lo, math.Min(p.Price, p.Smoothed))
		hi = math.Max(hi, math.Max(p.Price, p.Smoothed))
	}
	return lo, hi
}

// sample picks at most width ascending point indexes spread evenly, always keeping the last point.
func sample(n, width int) []int {
	if n <= width {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out
	}
	out := make([]int, width)
	for x := range out {
		out[x] = x * (n - 1) / (width - 1)
	}
	return out
}
