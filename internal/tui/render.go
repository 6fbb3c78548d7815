package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"finsview/internal/analysis"
	"finsview/internal/dashboard"
	"finsview/internal/domain"
	"finsview/internal/symbollist"
	"finsview/pkg/gofins"
)

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerText := " finsview"
	if m.user != nil {
		headerText += "  " + m.user.Name
		if m.user.IsAdmin {
			headerText += " (admin)"
		}
	}
	if m.baseURL != "" {
		headerText += "  " + m.baseURL
	}
	if m.status != "" {
		headerText += "    " + m.status
	}
	headerBar := headerStyle.Render(dashboard.PadOrTrunc(headerText, m.width))

	return headerBar + "\n" + m.renderTabBar() + "\n" + m.viewport.View() + "\n" + m.renderFooter()
}

func (m Model) renderTabBar() string {
	var b strings.Builder
	for i, t := range m.tabs.tabs {
		label := fmt.Sprintf(" %d %s ", i+1, dashboard.PadOrTrunc(t.view.title(), min(len([]rune(t.view.title())), 24)))
		if i == m.tabs.active {
			b.WriteString(activeTabStyle.Render(label))
		} else {
			b.WriteString(tabStyle.Render(label))
		}
		b.WriteString(" ")
	}
	return b.String()
}

func (m Model) renderFooter() string {
	switch {
	case m.notice != "":
		return noticeStyle.Render(dashboard.PadOrTrunc(" "+m.notice+"  (press any key)", m.width))
	case m.confirm != nil:
		return noticeStyle.Render(dashboard.PadOrTrunc(" "+m.confirm.question+" [y/N]", m.width))
	case m.prompt != nil:
		return " " + m.prompt.input.View()
	}

	pct := m.viewport.ScrollPercent() * 100
	footerLeft := " " + helpText(m.tabs.current().view.kind())
	footerRight := fmt.Sprintf("%.0f%% ", pct)
	gap := max(m.width-len([]rune(footerLeft))-len(footerRight), 0)
	return footerStyle.Render(dashboard.PadOrTrunc(footerLeft+strings.Repeat(" ", gap)+footerRight, m.width))
}

func helpText(k viewKind) string {
	const common = "q quit  tab/1-9 tabs  g goto  n new  r refresh"
	switch k {
	case kindFavorites, kindStocks:
		return common + "  / search  f filter  c clear  s/S sort  left/right page  space fav  enter open"
	case kindNotes:
		return common + "  space fav  enter open"
	case kindAnalyses:
		return common + "  enter open  R rename  d delete"
	case kindErrors:
		return common + "  c clear log"
	case kindAnalysis:
		return common + "  s/S sort  w/W weight  f filter  enter symbol  R rename  d delete  x close"
	case kindSymbol:
		return common + "  space fav  a rate  d delete rating  p prices  x close"
	case kindCreate:
		return " up/down field  enter create  esc cancel"
	}
	return common
}

// refresh re-renders the focused tab into the viewport and keeps its cursor
// in view.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	content, line := m.renderContent()
	m.viewport.SetContent(content)
	m.ensureVisible(line)
}

// ensureVisible scrolls the viewport so line is visible. Negative lines are
// ignored.
func (m *Model) ensureVisible(line int) {
	if line < 0 {
		return
	}
	yOff := m.viewport.YOffset
	vpH := m.viewport.Height
	if line < yOff {
		m.viewport.SetYOffset(line)
	} else if line >= yOff+vpH {
		m.viewport.SetYOffset(line - vpH + 1)
	}
}

// renderContent renders the focused tab and returns the line of its cursor,
// or -1 when nothing is selectable.
func (m *Model) renderContent() (string, int) {
	var b strings.Builder
	line := -1
	switch v := m.tabs.current().view.(type) {
	case *listView:
		line = m.renderList(&b, v)
	case *notesView:
		line = m.renderNotes(&b, v)
	case *analysesView:
		line = m.renderAnalyses(&b, v)
	case *errorsView:
		line = m.renderErrors(&b, v)
	case *analysisView:
		line = m.renderAnalysis(&b, v)
	case *symbolView:
		line = m.renderSymbol(&b, v)
	case *createView:
		line = m.renderCreate(&b, v)
	}
	return b.String(), line
}

func section(b *strings.Builder, text string, width int) {
	b.WriteString(sectionStyle.Width(max(width, 1)).Render(text))
	b.WriteString("\n")
}

// statusLine writes the error, loading or empty line that sits under a
// view's heading.
func statusLine(b *strings.Builder, err error, loading bool) {
	switch {
	case err != nil:
		b.WriteString(errorStyle.Render("  " + errorText(err)))
	case loading:
		b.WriteString(dimStyle.Render("  Loading..."))
	}
	b.WriteString("\n")
}

func arrow(d symbollist.Direction) string {
	if d == symbollist.Desc {
		return "↓"
	}
	return "↑"
}

// ---------------------------------------------------------------------------
// Symbol lists
// ---------------------------------------------------------------------------

const listColumns = "%-5s %-8s %-26s %-9s %-3s %-22s %9s %11s %8s %5s %6s"

func (m *Model) renderList(b *strings.Builder, v *listView) int {
	v.page = v.list.Render(m.catalog.GetMany(v.tickers))
	v.cursor = clamp(v.cursor, 0, len(v.page.Items)-1)

	key := v.list.State.Sort()
	head := fmt.Sprintf("  %s  %s    sort: %s %s", strings.ToUpper(v.title()), v.page.Label(), key.Column, arrow(key.Direction))
	if s := v.list.State.SearchTerm; s != "" {
		head += fmt.Sprintf("    search: %q", s)
	}
	if f := formatListFilter(v.list.State); f != "" {
		head += "    filter: " + f
	}
	section(b, head, m.width)
	statusLine(b, v.err, v.loading)

	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("  "+listColumns,
		"#", "Ticker", "Name", "Exchange", "Cty", "Sector", "Mcap", "Price", "ΔATH", "Incep", "Rating")))
	b.WriteString("\n")

	if len(v.page.Items) == 0 {
		if v.loaded {
			b.WriteString(dimStyle.Render("  (no matching symbols)"))
			b.WriteString("\n")
		}
		return -1
	}

	for i, s := range v.page.Items {
		hl := i == v.cursor
		fav := s.Favorite()
		mark := " "
		if fav {
			mark = "*"
		}
		b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf(" %s%-5d", mark, v.page.Start+i+1)))
		b.WriteString(hlStyle(tickerStyle(fav, hl), hl).Render(fmt.Sprintf("%-8s ", dashboard.PadOrTrunc(s.Ticker, 8))))
		b.WriteString(hlStyle(priceStyle, hl).Render(dashboard.PadOrTrunc(domain.Deref(s.Name), 26) + " "))
		b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf("%-9s %-3s %-22s ",
			dashboard.PadOrTrunc(domain.Deref(s.Exchange), 9),
			dashboard.PadOrTrunc(domain.Deref(s.Country), 3),
			dashboard.PadOrTrunc(domain.Deref(s.Sector), 22))))
		b.WriteString(hlStyle(priceStyle, hl).Render(fmt.Sprintf("%9s %11s ",
			dashboard.FormatMarketCap(s.MarketCap), dashboard.FormatPrice(s.CurrentPriceUSD))))
		if d, ok := s.DeltaATH(); ok {
			b.WriteString(hlStyle(signStyle(d), hl).Render(fmt.Sprintf("%8s ", dashboard.FormatPercent(&d, 1))))
		} else {
			b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf("%8s ", dashboard.NA)))
		}
		b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf("%5s ", dashboard.FormatYear(s.Inception))))
		b.WriteString(hlStyle(ratingStyle(s.UserRating), hl).Render(fmt.Sprintf("%6s", dashboard.FormatRating(s.UserRating))))
		if hl {
			b.WriteString(lipgloss.NewStyle().Background(highlightBG).Render(" "))
		}
		b.WriteString("\n")
	}
	return 3 + v.cursor
}

// ---------------------------------------------------------------------------
// Notes
// ---------------------------------------------------------------------------

func (m *Model) renderNotes(b *strings.Builder, v *notesView) int {
	section(b, fmt.Sprintf("  NOTES  %s tickers", dashboard.FormatInt(len(v.groups))), m.width)
	statusLine(b, v.err, v.loading)

	if len(v.groups) == 0 {
		if !v.loading {
			b.WriteString(dimStyle.Render("  (no notes yet)"))
			b.WriteString("\n")
		}
		return -1
	}

	v.cursor = clamp(v.cursor, 0, len(v.groups)-1)
	line, selected := 2, -1
	for i, g := range v.groups {
		hl := i == v.cursor
		if hl {
			selected = line
		}
		sym, _ := m.catalog.Get(g.Ticker)
		fav := sym.Favorite()
		b.WriteString(hlStyle(tickerStyle(fav, hl), hl).Render(fmt.Sprintf("  %-8s", g.Ticker)))
		b.WriteString(hlStyle(dimStyle, hl).Render(" " + domain.Deref(sym.Name)))
		b.WriteString("\n")
		line++
		for _, n := range g.Notes {
			b.WriteString(dimStyle.Render(fmt.Sprintf("      %-13s ", dashboard.FormatDay(n.CreatedAt))))
			b.WriteString(ratingStyle(&n.Rating).Render(fmt.Sprintf("%3s", dashboard.FormatRating(&n.Rating))))
			b.WriteString("  " + domain.Deref(n.Notes))
			b.WriteString("\n")
			line++
		}
	}
	return selected
}

// ---------------------------------------------------------------------------
// Analyses
// ---------------------------------------------------------------------------

func (m *Model) renderAnalyses(b *strings.Builder, v *analysesView) int {
	section(b, fmt.Sprintf("  ANALYSES  %s", dashboard.FormatInt(len(v.pkgs))), m.width)
	statusLine(b, v.err, v.loading)

	const cols = "  %-4s %-32s %-11s %-8s %-8s %-8s %7s  %s"
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf(cols, "#", "Name", "Status", "Interval", "From", "To", "Symbols", "Created")))
	b.WriteString("\n")

	if len(v.pkgs) == 0 {
		if !v.loading {
			b.WriteString(dimStyle.Render("  (no analyses, press n to create one)"))
			b.WriteString("\n")
		}
		return -1
	}

	v.cursor = clamp(v.cursor, 0, len(v.pkgs)-1)
	for i, p := range v.pkgs {
		hl := i == v.cursor
		b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf("  %-4d ", i+1)))
		b.WriteString(hlStyle(symbolStyle, hl).Render(dashboard.PadOrTrunc(p.Name, 32) + " "))
		b.WriteString(hlStyle(statusStyle(p.Status), hl).Render(fmt.Sprintf("%-11s ", p.Status)))
		b.WriteString(hlStyle(priceStyle, hl).Render(fmt.Sprintf("%-8s %-8s %-8s %7d  %s",
			p.Interval, dashboard.FormatMonth(p.TimeFrom), dashboard.FormatMonth(p.TimeTo),
			p.SymbolCount, dashboard.FormatDay(p.CreatedAt))))
		b.WriteString("\n")
	}
	return 3 + v.cursor
}

// ---------------------------------------------------------------------------
// Error log
// ---------------------------------------------------------------------------

func (m *Model) renderErrors(b *strings.Builder, v *errorsView) int {
	head := fmt.Sprintf("  ERROR LOG  %s entries", dashboard.FormatInt(len(v.entries)))
	if v.cleared != nil {
		head += fmt.Sprintf("    last clear removed %d", *v.cleared)
	}
	section(b, head, m.width)
	statusLine(b, v.err, v.loading)

	const cols = "  %-19s %-18s %-14s %s"
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf(cols, "Time", "Source", "Type", "Message")))
	b.WriteString("\n")

	if len(v.entries) == 0 {
		if !v.loading {
			b.WriteString(dimStyle.Render("  (error log is empty)"))
			b.WriteString("\n")
		}
		return -1
	}

	v.cursor = clamp(v.cursor, 0, len(v.entries)-1)
	for i, e := range v.entries {
		hl := i == v.cursor
		b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf("  %-19s ", e.Timestamp.Local().Format("2006-01-02 15:04:05"))))
		b.WriteString(hlStyle(labelStyle, hl).Render(fmt.Sprintf("%-18s ", dashboard.PadOrTrunc(e.Source, 18))))
		b.WriteString(hlStyle(errorStyle, hl).Render(fmt.Sprintf("%-14s ", dashboard.PadOrTrunc(e.ErrorType, 14))))
		msg := e.Message
		if e.Details != nil {
			msg += " (" + *e.Details + ")"
		}
		b.WriteString(hlStyle(priceStyle, hl).Render(msg))
		b.WriteString("\n")
	}
	return 3 + v.cursor
}

// ---------------------------------------------------------------------------
// Analysis results
// ---------------------------------------------------------------------------

func (m *Model) renderAnalysis(b *strings.Builder, v *analysisView) int {
	if v.notFound {
		section(b, "  ANALYSIS", m.width)
		b.WriteString(errorStyle.Render(fmt.Sprintf("  Analysis %s not found", v.id)))
		b.WriteString("\n")
		return -1
	}
	if v.pkg == nil {
		section(b, "  ANALYSIS  "+v.id, m.width)
		statusLine(b, v.err, true)
		return -1
	}

	p := v.pkg
	section(b, fmt.Sprintf("  %s  %s", p.Name, p.Status), m.width)

	params := fmt.Sprintf("  %s  %s to %s  bins %d [%g, %g]  symbols %d",
		p.Interval, dashboard.FormatDay(p.TimeFrom), dashboard.FormatDay(p.TimeTo),
		p.HistBins, p.HistMin, p.HistMax, p.SymbolCount)
	if p.McapMin != nil {
		params += "  mcap >= " + dashboard.FormatMarketCap(p.McapMin)
	}
	if p.InceptionMax != nil {
		params += "  inception <= " + dashboard.FormatDay(*p.InceptionMax)
	}
	b.WriteString(dimStyle.Render(params))
	b.WriteString("\n")

	ctl := fmt.Sprintf("  sort: %s %s    weight: %.1f", v.order.Field, v.order.Indicator(v.order.Field), v.weight)
	if f := formatResultsFilter(v.filterIn); f != "" {
		ctl += "    filter: " + f
	}
	if v.resultsLoaded {
		ctl += fmt.Sprintf("    showing %d of %d", len(v.rows), len(v.results))
	}
	b.WriteString(dimStyle.Render(ctl))
	b.WriteString("\n")

	switch {
	case v.filterErr != nil:
		b.WriteString(errorStyle.Render("  " + errorText(v.filterErr)))
	case v.err != nil:
		b.WriteString(errorStyle.Render("  " + errorText(v.err)))
	case p.Status == domain.StatusProcessing:
		b.WriteString(statusStyle(p.Status).Render("  Processing, checking for updates..."))
	case p.Status == domain.StatusFailed:
		b.WriteString(errorStyle.Render("  Analysis failed"))
	case v.polling && !v.resultsLoaded:
		b.WriteString(dimStyle.Render("  Loading results..."))
	}
	b.WriteString("\n")

	if !v.resultsLoaded {
		return -1
	}

	hdr := func(f analysis.Field, label string) string { return label + v.order.Indicator(f) }
	const cols = "  %-5s %-8s %-12s %9s %9s %9s %9s %9s"
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf(cols, "#",
		hdr(analysis.FieldSymbol, "Symbol"), hdr(analysis.FieldInception, "Inception"),
		hdr(analysis.FieldMean, "Mean"), hdr(analysis.FieldStdDev, "StdDev"),
		"Min", "Max", hdr(analysis.FieldScore, "Score"))))
	b.WriteString("\n")

	if len(v.rows) == 0 {
		b.WriteString(dimStyle.Render("  (no results match the filter)"))
		b.WriteString("\n")
		return -1
	}

	for i, r := range v.rows {
		hl := i == v.cursor
		sym, _ := m.catalog.Get(r.Symbol)
		b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf("  %-5d ", i+1)))
		b.WriteString(hlStyle(tickerStyle(sym.Favorite(), hl), hl).Render(fmt.Sprintf("%-8s ", dashboard.PadOrTrunc(r.Symbol, 8))))
		incep := dashboard.NA
		if r.Inception != nil {
			incep = dashboard.FormatMonth(*r.Inception)
		}
		b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf("%-12s ", incep)))
		b.WriteString(hlStyle(signStyle(r.Mean), hl).Render(fmt.Sprintf("%9.2f ", r.Mean)))
		b.WriteString(hlStyle(priceStyle, hl).Render(fmt.Sprintf("%9.2f %9.2f %9.2f ", r.StdDev, r.Min, r.Max)))
		b.WriteString(hlStyle(signStyle(r.Score), hl).Render(fmt.Sprintf("%9.2f", r.Score)))
		b.WriteString("\n")
	}
	return 5 + v.cursor
}

// ---------------------------------------------------------------------------
// Symbol detail
// ---------------------------------------------------------------------------

func (m *Model) renderSymbol(b *strings.Builder, v *symbolView) int {
	if v.notFound {
		section(b, "  "+v.ticker, m.width)
		b.WriteString(errorStyle.Render(fmt.Sprintf("  Symbol %s not found", v.ticker)))
		b.WriteString("\n")
		return -1
	}
	if v.detail == nil {
		section(b, "  "+v.ticker, m.width)
		statusLine(b, v.err, v.loading)
		return -1
	}

	p := v.detail.Profile
	sym := p.Symbol
	if live, ok := m.catalog.Get(v.ticker); ok {
		sym.IsFavorite, sym.UserRating, sym.LatestRating = live.IsFavorite, live.UserRating, live.LatestRating
	}
	head := fmt.Sprintf("  %s  %s", v.ticker, domain.Deref(sym.Name))
	if sym.Favorite() {
		head += "  *"
	}
	section(b, head, m.width)
	statusLine(b, v.err, v.loading)

	line := 2
	field := func(label, value string) {
		b.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s ", label)))
		b.WriteString(priceStyle.Render(value))
		b.WriteString("\n")
		line++
	}
	active := dashboard.NA
	if sym.IsActivelyTrading != nil {
		active = map[bool]string{true: "yes", false: "no"}[*sym.IsActivelyTrading]
	}
	delta := dashboard.NA
	if d, ok := sym.DeltaATH(); ok {
		delta = dashboard.FormatPercent(&d, 1)
	}
	field("Exchange", orNA(sym.Exchange))
	field("Type", orNA(sym.Type))
	field("Sector", orNA(sym.Sector)+" / "+orNA(sym.Industry))
	field("Country", orNA(sym.Country))
	field("Currency", orNA(p.Currency))
	field("ISIN", orNA(p.ISIN))
	field("Inception", dateOrNA(sym.Inception))
	field("Oldest price", dateOrNA(sym.OldestPrice))
	field("Active", active)
	field("Market cap", dashboard.FormatMarketCap(sym.MarketCap))
	field("Price (USD)", dashboard.FormatPrice(sym.CurrentPriceUSD))
	field("12M high", dashboard.FormatPrice(sym.ATH12M))
	field("From high", delta)
	field("Your rating", dashboard.FormatRating(sym.UserRating))
	field("Website", orNA(p.Website))
	if p.Description != nil {
		field("About", dashboard.PadOrTrunc(*p.Description, max(m.width-20, 10)))
	}

	chart, hist := gofins.ChartPath(v.ticker), gofins.HistogramPath(v.ticker)
	if v.packageID != "" {
		chart, hist = gofins.AnalysisChartPath(v.packageID, v.ticker), gofins.AnalysisHistogramPath(v.packageID, v.ticker)
	}
	field("Chart", m.api.ImageURL(chart))
	field("Histogram", m.api.ImageURL(hist))

	b.WriteString("\n")
	line++
	section(b, fmt.Sprintf("  RATINGS  %d", len(v.detail.Ratings)), m.width)
	line++
	if v.ratingErr != nil {
		b.WriteString(errorStyle.Render("  " + errorText(v.ratingErr)))
		b.WriteString("\n")
		line++
	}

	selected := -1
	if len(v.detail.Ratings) == 0 {
		b.WriteString(dimStyle.Render("  (not rated, press a to rate)"))
		b.WriteString("\n")
		line++
	}
	v.cursor = clamp(v.cursor, 0, len(v.detail.Ratings)-1)
	for i, r := range v.detail.Ratings {
		hl := i == v.cursor
		if hl {
			selected = line
		}
		b.WriteString(hlStyle(dimStyle, hl).Render(fmt.Sprintf("  %-13s ", dashboard.FormatDay(r.CreatedAt))))
		b.WriteString(hlStyle(ratingStyle(&r.Rating), hl).Render(fmt.Sprintf("%3s", dashboard.FormatRating(&r.Rating))))
		b.WriteString(hlStyle(priceStyle, hl).Render("  " + domain.Deref(r.Notes)))
		b.WriteString("\n")
		line++
	}

	b.WriteString("\n")
	if v.priceInterval == "" {
		b.WriteString(dimStyle.Render("  press p for price history"))
		b.WriteString("\n")
		return selected
	}
	head = fmt.Sprintf("  PRICES  %s", v.priceInterval)
	if v.pricesCached {
		head += "  (cached)"
	}
	section(b, head, m.width)
	switch {
	case v.pricesErr != nil:
		b.WriteString(errorStyle.Render("  " + errorText(v.pricesErr)))
		b.WriteString("\n")
	case v.pricesLoading:
		b.WriteString(dimStyle.Render("  Loading..."))
		b.WriteString("\n")
	default:
		renderPrices(b, v.prices)
	}
	return selected
}

func renderPrices(b *strings.Builder, bars []domain.PriceBar) {
	const cols = "  %-12s %11s %11s %11s %11s %11s %9s"
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf(cols, "Date", "Open", "High", "Low", "Close", "Avg", "YoY")))
	b.WriteString("\n")
	for i := len(bars) - 1; i >= 0; i-- {
		p := bars[i]
		b.WriteString(dimStyle.Render(fmt.Sprintf("  %-12s ", p.Date.Format("2006-01-02"))))
		b.WriteString(priceStyle.Render(fmt.Sprintf("%11s %11s %11s %11s %11s ",
			dashboard.FormatPrice(&p.Open), dashboard.FormatPrice(&p.High), dashboard.FormatPrice(&p.Low),
			dashboard.FormatPrice(&p.Close), dashboard.FormatPrice(&p.Avg))))
		if p.YoY != nil {
			b.WriteString(signStyle(*p.YoY).Render(fmt.Sprintf("%9s", dashboard.FormatPercent(p.YoY, 1))))
		} else {
			b.WriteString(dimStyle.Render(fmt.Sprintf("%9s", dashboard.NA)))
		}
		b.WriteString("\n")
	}
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return dashboard.NA
	}
	return *s
}

func dateOrNA(t *time.Time) string {
	if t == nil {
		return dashboard.NA
	}
	return dashboard.FormatDay(*t)
}

// ---------------------------------------------------------------------------
// Create form
// ---------------------------------------------------------------------------

func (m *Model) renderCreate(b *strings.Builder, v *createView) int {
	section(b, "  NEW ANALYSIS", m.width)
	b.WriteString("\n")
	for i, f := range v.fields {
		style := labelStyle
		if i == v.focus {
			style = symbolHlStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("  %-16s ", f.label)))
		b.WriteString(f.input.View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	switch {
	case v.err != nil:
		b.WriteString(errorStyle.Render("  " + errorText(v.err)))
	case v.submitting:
		b.WriteString(dimStyle.Render("  Creating..."))
	}
	b.WriteString("\n")
	return 2 + v.focus
}
