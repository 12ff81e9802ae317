package dashboard

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"BreakoutScanner/internal/model"
	"BreakoutScanner/internal/report"
	"BreakoutScanner/internal/scanner"
)

// Styles.
var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("4"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("8"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	signalStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	gainStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	sectionStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// Scanner runs passes and resolves detail views.
type Scanner interface {
	Scan(ctx context.Context, tickers []string) *model.ScanResult
	Detail(ctx context.Context, ticker string) (*scanner.DetailView, bool)
}

type scanDoneMsg struct {
	result *model.ScanResult
}

type detailDoneMsg struct {
	ticker string
	view   *scanner.DetailView
	ok     bool
}

// Model is the bubbletea model of the scanner dashboard.
type Model struct {
	ctx      context.Context
	scanner  Scanner
	span     int
	input    textinput.Model
	viewport viewport.Model
	ready    bool
	width    int
	height   int

	scanning bool
	result   *model.ScanResult
	selected string
	detail   *scanner.DetailView
	loading  bool // detail lookup in flight
}

// New creates the dashboard model with the ticker input prefilled.
func New(ctx context.Context, sc Scanner, tickers string, span int) Model {
	ti := textinput.New()
	ti.Prompt = "Tickers: "
	ti.Placeholder = scanner.DefaultTickers
	ti.CharLimit = 512
	ti.SetValue(tickers)
	ti.Focus()
	return Model{ctx: ctx, scanner: sc, span: span, input: ti, scanning: true}
}

// Run starts the dashboard in the alternate screen and blocks until it exits.
func Run(ctx context.Context, sc Scanner, tickers string, span int) error {
	p := tea.NewProgram(New(ctx, sc, tickers, span), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Init runs the first pass over the prefilled tickers.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.scanCmd())
}

func (m *Model) startScan() tea.Cmd {
	m.scanning = true
	return m.scanCmd()
}

func (m Model) scanCmd() tea.Cmd {
	tickers := scanner.ParseTickers(m.input.Value())
	sc, ctx := m.scanner, m.ctx
	return func() tea.Msg {
		return scanDoneMsg{result: sc.Scan(ctx, tickers)}
	}
}

func (m *Model) loadDetail(ticker string) tea.Cmd {
	m.selected = ticker
	m.detail = nil
	if ticker == "" {
		return nil
	}
	m.loading = true
	sc, ctx := m.scanner, m.ctx
	return func() tea.Msg {
		view, ok := sc.Detail(ctx, ticker)
		return detailDoneMsg{ticker: ticker, view: view, ok: ok}
	}
}

// moveSelection steps the detail ticker through the candidates in input order.
func (m *Model) moveSelection(delta int) tea.Cmd {
	if m.result == nil {
		return nil
	}
	candidates := m.result.DetailCandidates()
	if len(candidates) == 0 {
		return nil
	}
	cur := 0
	for i, t := range candidates {
		if t == m.selected {
			cur = i
			break
		}
	}
	next := (cur + delta + len(candidates)) % len(candidates)
	if candidates[next] == m.selected {
		return nil
	}
	return m.loadDetail(candidates[next])
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.input.Focused() && !m.scanning {
				m.input.Blur()
				return m, m.startScan()
			}
		case "tab", "/":
			if m.input.Focused() {
				m.input.Blur()
			} else {
				m.input.Focus()
				return m, textinput.Blink
			}
			return m, nil
		case "esc":
			m.input.Blur()
			return m, nil
		}
		if !m.input.Focused() {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "r":
				if !m.scanning {
					return m, m.startScan()
				}
				return m, nil
			case "up", "k":
				cmd := m.moveSelection(-1)
				m.refresh()
				return m, cmd
			case "down", "j":
				cmd := m.moveSelection(1)
				m.refresh()
				return m, cmd
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 3 // title, input, footer
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		m.input.Width = m.width - len(m.input.Prompt) - 1
		m.refresh()
		return m, nil

	case scanDoneMsg:
		m.scanning = false
		m.result = msg.result
		requested := m.selected
		cmd := m.loadDetail(m.result.SelectDetail(requested))
		m.refresh()
		return m, cmd

	case detailDoneMsg:
		if msg.ticker != m.selected {
			return m, nil // stale
		}
		m.loading = false
		if msg.ok {
			m.detail = msg.view
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	if m.input.Focused() {
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	} else if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Model) refresh() {
	if m.ready {
		m.viewport.SetContent(m.renderContent())
	}
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	status := ""
	switch {
	case m.scanning:
		status = "scanning..."
	case m.result != nil:
		status = fmt.Sprintf("last pass %s", humanize.Time(m.result.StartedAt))
	}
	title := titleStyle.Render(padOrTrunc(fmt.Sprintf(" EMA%d Breakout + Chatter Scanner    %s ", m.span, status), m.width))

	footer := " enter scan  tab edit/browse  up/dn detail  r rescan  pgup/dn scroll  q quit"
	if m.input.Focused() {
		footer = " enter scan  tab browse  esc done editing  ctrl+c quit"
	}
	return title + "\n" + m.input.View() + "\n" + m.viewport.View() + "\n" + footerStyle.Render(padOrTrunc(footer, m.width))
}

func (m Model) renderContent() string {
	var b strings.Builder
	if m.result == nil {
		b.WriteString(dimStyle.Render("Waiting for first scan..."))
		return b.String()
	}
	res := m.result

	b.WriteString(sectionStyle.Render("Scan Results") + "\n\n")
	if res.NoValidTickers {
		b.WriteString(noticeStyle.Render(res.Message) + "\n")
	} else {
		b.WriteString(m.renderTable(res))
	}
	for _, n := range res.Notices {
		b.WriteString(noticeStyle.Render(fmt.Sprintf("%s: %s", n.Ticker, n.Message)) + "\n")
	}

	if m.selected == "" {
		return b.String()
	}
	b.WriteString("\n")
	switch {
	case m.loading:
		b.WriteString(dimStyle.Render(fmt.Sprintf("Loading %s...", m.selected)) + "\n")
	case m.detail == nil:
		b.WriteString(noticeStyle.Render(fmt.Sprintf("%s: %s", m.selected, model.NoDataMessage)) + "\n")
	default:
		b.WriteString(m.renderDetail(m.detail))
	}
	return b.String()
}

func (m Model) renderTable(res *model.ScanResult) string {
	headers := report.HeadersFor(m.span)
	rows := report.TableRows(res.Rows)
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i, cell := range r {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	b.WriteString("  " + headerStyle.Render(joinCells(headers, widths)) + "\n")
	for i, r := range rows {
		row := res.Rows[i]
		cells := make([]string, len(r))
		for j, cell := range r {
			cells[j] = pad(cell, widths[j], j > 0)
		}
		if row.Crossover {
			cells[4] = signalStyle.Render(cells[4])
		}
		if row.Delta >= 0 {
			cells[3] = gainStyle.Render(cells[3])
		} else {
			cells[3] = lossStyle.Render(cells[3])
		}
		cursor := "  "
		if row.Ticker == m.selected {
			cursor = "> "
			cells[0] = selectedStyle.Render(cells[0])
		}
		b.WriteString(cursor + strings.Join(cells, "  ") + "\n")
	}
	return b.String()
}

func (m Model) renderDetail(view *scanner.DetailView) string {
	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("%s Price + EMA%d", view.Ticker, view.Chart.Span)) + "\n")
	width := m.width - 2
	if width < 40 {
		width = 40
	}
	b.WriteString(view.Chart.Render(width, 12) + "\n")
	b.WriteString(dimStyle.Render(view.Chart.Legend()) + "\n\n")

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Recent Stocktwits for %s", view.Ticker)) + "\n")
	preview := view.Chatter.Preview
	if preview == "" {
		preview = "(no messages)"
	}
	if view.Chatter.Degraded {
		b.WriteString(noticeStyle.Render(preview) + "\n")
	} else {
		b.WriteString(lipgloss.NewStyle().Width(width).Render(preview) + "\n")
	}
	return b.String()
}

func joinCells(cells []string, widths []int) string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = pad(c, widths[i], i > 0)
	}
	return strings.Join(out, "  ")
}

func pad(s string, w int, right bool) string {
	gap := w - lipgloss.Width(s)
	if gap <= 0 {
		return s
	}
	if right {
		return strings.Repeat(" ", gap) + s
	}
	return s + strings.Repeat(" ", gap)
}

func padOrTrunc(s string, w int) string {
	if w <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) > w {
		return string(r[:w])
	}
	return s + strings.Repeat(" ", w-len(r))
}
