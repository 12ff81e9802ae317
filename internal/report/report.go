package report

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/scanner"
)

// Column headers of the scan table.
var Headers = []string{"Ticker", "Price", "EMA40", "Δ (P - EMA)", "Signal", "Chatter Vol."}

// HeadersFor returns the table headers for an EMA span.
func HeadersFor(span int) []string {
	h := append([]string(nil), Headers...)
	h[2] = fmt.Sprintf("EMA%d", span)
	return h
}

// TableRows renders rows as display strings in header order.
func TableRows(rows model.ScanTable) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = []string{
			r.Ticker,
			model.Fixed2(r.DisplayClose()),
			model.Fixed2(r.DisplaySmoothed()),
			signed2(r.DisplayDelta()),
			r.Marker(),
			humanize.Comma(int64(r.ChatterCount)),
		}
	}
	return out
}

func signed2(v float64) string {
	s := model.Fixed2(v)
	if !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s
}

// FormatScanTable renders the ranked table, notices and the empty state as plain text.
func FormatScanTable(res *model.ScanResult, span int) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("EMA%d Breakout Scan | %s | pass %s\n\n",
		span, res.StartedAt.Format("2006-01-02 15:04"), shortID(res.PassID)))

	if res.NoValidTickers {
		b.WriteString(res.Message + "\n")
	} else {
		headers := HeadersFor(span)
		rows := TableRows(res.Rows)
		widths := make([]int, len(headers))
		for i, h := range headers {
			widths[i] = len([]rune(h))
		}
		for _, r := range rows {
			for i, cell := range r {
				if n := len([]rune(cell)); n > widths[i] {
					widths[i] = n
				}
			}
		}
		writeRow(&b, headers, widths)
		sep := make([]string, len(widths))
		for i, w := range widths {
			sep[i] = strings.Repeat("-", w)
		}
		writeRow(&b, sep, widths)
		for _, r := range rows {
			writeRow(&b, r, widths)
		}
	}

	if len(res.Notices) > 0 {
		b.WriteString("\n")
		for _, n := range res.Notices {
			b.WriteString(fmt.Sprintf("%s: %s\n", n.Ticker, n.Message))
		}
	}
	return b.String()
}

func writeRow(b *strings.Builder, cells []string, widths []int) {
	for i, cell := range cells {
		pad := widths[i] - len([]rune(cell))
		if i == 0 {
			b.WriteString(cell + strings.Repeat(" ", pad))
		} else {
			b.WriteString("  " + strings.Repeat(" ", pad) + cell)
		}
	}
	b.WriteString("\n")
}

// FormatDetail renders the chart and chatter preview for one ticker.
func FormatDetail(view *scanner.DetailView, width, height int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s Price + EMA%d\n", view.Ticker, view.Chart.Span))
	b.WriteString(view.Chart.Render(width, height))
	b.WriteString("\n" + view.Chart.Legend() + "\n")
	if n := len(view.Chart.Markers); n > 0 {
		last := view.Chart.Markers[n-1]
		b.WriteString(fmt.Sprintf("Last buy signal: %s at %s\n", last.Time.Format("2006-01-02"), model.Fixed2(last.Price)))
	}
	b.WriteString(fmt.Sprintf("\nRecent Stocktwits for %s\n", view.Ticker))
	if view.Chatter.Preview == "" {
		b.WriteString("(no messages)\n")
	} else {
		b.WriteString(view.Chatter.Preview + "\n")
	}
	return b.String()
}

// FormatPass renders a full pass with the detail view appended when present.
func FormatPass(res *model.ScanResult, span int, view *scanner.DetailView) string {
	out := FormatScanTable(res, span)
	if view != nil {
		out += "\n" + FormatDetail(view, 80, 12)
	}
	out += fmt.Sprintf("\n%d rows, %d skipped, took %s\n", len(res.Rows), len(res.Notices), res.Duration.Round(1e6))
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
