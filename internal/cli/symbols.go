package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"finsview/internal/catalog"
	"finsview/internal/dashboard"
	"finsview/internal/domain"
	"finsview/internal/favorites"
	"finsview/internal/search"
	"finsview/internal/store"
	"finsview/internal/symbollist"
	"finsview/pkg/gofins"
)

// ---------------------------------------------------------------------------
// symbols
// ---------------------------------------------------------------------------

func newSymbolsCmd(a *app) *cobra.Command {
	var (
		favList  bool
		state    symbollist.ViewState
		sortCol  string
		desc     bool
		page     int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "symbols",
		Short: "List symbols with filters, sorting and paging",
		Long: `List the active symbols, or the favorites with --favorites.
Example: finsview-cli symbols --sector Technology --mcap-min 500 --sort marketCap --desc`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			col := symbollist.Column(sortCol)
			if !col.Valid() {
				return fmt.Errorf("unknown sort column %q, use one of: %s", sortCol, columnNames())
			}
			state.SortColumn, state.SortDirection = col, symbollist.Asc
			if desc {
				state.SortDirection = symbollist.Desc
			}

			which := domain.ListActive
			if favList {
				which = domain.ListFavorites
			}
			symbols, err := a.client.ListSymbols(cmd.Context(), which)
			if err != nil {
				return fmt.Errorf("listing symbols: %w", err)
			}

			l := symbollist.NewList(which.Endpoint(), pageSize)
			l.State = state
			l.Page = page
			a.printSymbols(l.Render(symbols))
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVar(&favList, "favorites", false, "List favorites instead of active symbols")
	f.StringVarP(&state.SearchTerm, "search", "s", "", "Case-insensitive substring of ticker or name")
	f.StringVar(&state.ExchangeFilter, "exchange", "", "Exact exchange")
	f.StringVar(&state.CountryFilter, "country", "", "Exact country")
	f.StringVar(&state.SectorFilter, "sector", "", "Exact sector")
	f.StringVar(&state.McapMin, "mcap-min", "", "Minimum market cap in billions")
	f.StringVar(&state.McapMax, "mcap-max", "", "Maximum market cap in billions")
	f.StringVar(&state.InceptionMin, "inception-min", "", "Earliest inception year")
	f.StringVar(&state.InceptionMax, "inception-max", "", "Latest inception year")
	f.StringVar(&state.OldestPriceMin, "oldest-min", "", "Earliest year of the oldest price")
	f.StringVar(&state.OldestPriceMax, "oldest-max", "", "Latest year of the oldest price")
	f.StringVar(&state.RatingMin, "rating-min", "", "Minimum rating")
	f.StringVar(&state.RatingMax, "rating-max", "", "Maximum rating")
	f.BoolVar(&state.FavoritesOnly, "fav-only", false, "Only favorites")
	f.BoolVar(&state.RatedOnly, "rated", false, "Only symbols with a rating")
	f.StringVar(&sortCol, "sort", string(symbollist.DefaultSort.Column), "Sort column")
	f.BoolVar(&desc, "desc", false, "Sort descending")
	f.IntVarP(&page, "page", "p", 1, "Page number")
	f.IntVar(&pageSize, "page-size", symbollist.PageSize, "Rows per page")

	return cmd
}

func columnNames() string {
	names := make([]string, len(symbollist.Columns))
	for i, c := range symbollist.Columns {
		names[i] = string(c)
	}
	return strings.Join(names, ", ")
}

func (a *app) printSymbols(p symbollist.Page[domain.Symbol]) {
	if p.Total == 0 {
		a.printf("No symbols found\n")
		return
	}
	a.printf("%-8s %-30s %-8s %-22s %10s %10s %8s %3s %6s\n",
		"TICKER", "NAME", "EXCH", "SECTOR", "MCAP", "PRICE", "ΔATH", "FAV", "RATING")
	a.rule(113)
	for _, s := range p.Items {
		var delta *float64
		if d, ok := s.DeltaATH(); ok {
			delta = &d
		}
		fav := ""
		if s.Favorite() {
			fav = "★"
		}
		a.printf("%-8s %-30s %-8s %-22s %10s %10s %8s %3s %6s\n",
			dashboard.PadOrTrunc(s.Ticker, 8),
			dashboard.PadOrTrunc(domain.Deref(s.Name), 30),
			dashboard.PadOrTrunc(domain.Deref(s.Exchange), 8),
			dashboard.PadOrTrunc(domain.Deref(s.Sector), 22),
			dashboard.FormatMarketCap(s.MarketCap),
			dashboard.FormatPrice(s.CurrentPriceUSD),
			dashboard.FormatPercent(delta, 1),
			fav,
			dashboard.FormatRating(s.UserRating),
		)
	}
	a.printf("\n%s\n", p.Label())
}

// ---------------------------------------------------------------------------
// symbol
// ---------------------------------------------------------------------------

func newSymbolCmd(a *app) *cobra.Command {
	var packageID string

	cmd := &cobra.Command{
		Use:   "symbol TICKER",
		Short: "Show a symbol's profile and rating history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticker := strings.ToUpper(args[0])
			d, err := a.client.LoadSymbolDetail(cmd.Context(), ticker, packageID)
			if err != nil {
				return fmt.Errorf("loading %s: %w", ticker, err)
			}
			a.printProfile(d.Profile)
			a.printf("\n")
			a.printRatings(d.Ratings)

			chart, hist := gofins.ChartPath(ticker), gofins.HistogramPath(ticker)
			if packageID != "" {
				chart, hist = gofins.AnalysisChartPath(packageID, ticker), gofins.AnalysisHistogramPath(packageID, ticker)
			}
			a.printf("\nChart:     %s\nHistogram: %s\n", a.client.ImageURL(chart), a.client.ImageURL(hist))
			return nil
		},
	}
	cmd.Flags().StringVarP(&packageID, "analysis", "a", "", "Show the profile as seen by this analysis package")
	return cmd
}

func (a *app) printProfile(p domain.SymbolProfile) {
	var delta *float64
	if d, ok := p.DeltaATH(); ok {
		delta = &d
	}
	active := dashboard.NA
	if p.IsActivelyTrading != nil {
		active = strconv.FormatBool(*p.IsActivelyTrading)
	}
	oldest := dashboard.NA
	if p.OldestPrice != nil {
		oldest = dashboard.FormatDay(*p.OldestPrice)
	}

	fields := []struct{ label, value string }{
		{"Ticker", p.Ticker},
		{"Name", orNA(p.Name)},
		{"Exchange", orNA(p.Exchange)},
		{"Type", orNA(p.Type)},
		{"Sector", orNA(p.Sector)},
		{"Industry", orNA(p.Industry)},
		{"Country", orNA(p.Country)},
		{"Currency", orNA(p.Currency)},
		{"ISIN", orNA(p.ISIN)},
		{"Website", orNA(p.Website)},
		{"Inception", dashboard.FormatYear(p.Inception)},
		{"Oldest price", oldest},
		{"Active", active},
		{"Market cap", dashboard.FormatMarketCap(p.MarketCap)},
		{"Price (USD)", dashboard.FormatPrice(p.CurrentPriceUSD)},
		{"12M high", dashboard.FormatPrice(p.ATH12M)},
		{"Δ 12M high", dashboard.FormatPercent(delta, 1)},
		{"Favorite", strconv.FormatBool(p.Favorite())},
		{"Rating", dashboard.FormatRating(p.UserRating)},
	}
	for _, f := range fields {
		a.printf("%-14s %s\n", f.label+":", f.value)
	}
	if p.Description != nil {
		a.printf("\n%s\n", *p.Description)
	}
}

func (a *app) printRatings(ratings []domain.UserRating) {
	if len(ratings) == 0 {
		a.printf("No ratings\n")
		return
	}
	a.printf("%-6s %-10s %6s  %s\n", "ID", "DATE", "RATING", "NOTES")
	a.rule(60)
	for _, r := range ratings {
		a.printf("%-6d %-10s %6s  %s\n", r.ID, dashboard.FormatDay(r.CreatedAt), dashboard.FormatRating(&r.Rating), domain.Deref(r.Notes))
	}
}

func orNA(s *string) string {
	if s == nil || *s == "" {
		return dashboard.NA
	}
	return *s
}

// ---------------------------------------------------------------------------
// search
// ---------------------------------------------------------------------------

func newSearchCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Fuzzy search active symbols by ticker, name, sector or country",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := a.client.ListSymbols(cmd.Context(), domain.ListActive)
			if err != nil {
				return fmt.Errorf("listing symbols: %w", err)
			}
			cat := catalog.New(a.log)
			cat.BulkUpsert(symbols)

			idx, err := search.New(cat, a.log)
			if err != nil {
				return err
			}
			defer idx.Close()

			hits, err := idx.Search(strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				a.printf("No matches\n")
				return nil
			}
			for _, s := range cat.GetMany(hits) {
				a.printf("%-8s %-30s %s\n", s.Ticker, dashboard.PadOrTrunc(domain.Deref(s.Name), 30), domain.Deref(s.Exchange))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of matches")
	return cmd
}

// ---------------------------------------------------------------------------
// favorites
// ---------------------------------------------------------------------------

func newFavoritesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "List favorites or toggle them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			symbols, err := a.client.ListSymbols(cmd.Context(), domain.ListFavorites)
			if err != nil {
				return fmt.Errorf("listing favorites: %w", err)
			}
			l := symbollist.NewList(domain.ListFavorites.Endpoint(), len(symbols))
			a.printSymbols(l.Render(symbols))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle TICKER...",
		Short: "Flip the favorite flag of each ticker",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat := catalog.New(a.log)
			toggler := favorites.NewToggler(a.client, cat, nil, a.log)
			for _, arg := range args {
				res, err := toggler.Toggle(cmd.Context(), strings.ToUpper(arg))
				if err != nil {
					return err
				}
				if res.IsFavorite {
					a.printf("★ %s added to favorites\n", res.Ticker)
				} else {
					a.printf("  %s removed from favorites\n", res.Ticker)
				}
			}
			return nil
		},
	})

	return cmd
}

// ---------------------------------------------------------------------------
// ratings and notes
// ---------------------------------------------------------------------------

func newRatingsCmd(a *app) *cobra.Command {
	history := func(cmd *cobra.Command, args []string) error {
		ticker := strings.ToUpper(args[0])
		ratings, err := a.client.RatingHistory(cmd.Context(), ticker)
		if err != nil {
			return fmt.Errorf("loading ratings for %s: %w", ticker, err)
		}
		a.printRatings(ratings)
		return nil
	}

	cmd := &cobra.Command{
		Use:   "ratings TICKER",
		Short: "Show, add or delete ratings",
		Args:  cobra.ExactArgs(1),
		RunE:  history,
	}
	historyCmd := &cobra.Command{
		Use:   "history TICKER",
		Short: "Show the rating history of a symbol, newest first",
		Args:  cobra.ExactArgs(1),
		RunE:  history,
	}

	var (
		rating int
		notes  string
	)
	addCmd := &cobra.Command{
		Use:   "add TICKER",
		Short: "Rate a symbol from -5 to +5",
		Long: `Rate a symbol from -5 to +5 with optional notes.
Example: finsview-cli ratings add KO --rating -2 --notes "sugar tax risk"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := gofins.ValidateRating(rating); err != nil {
				return err
			}
			r, err := a.client.SubmitRating(cmd.Context(), strings.ToUpper(args[0]), rating, strings.TrimSpace(notes))
			if err != nil {
				return fmt.Errorf("submitting rating: %w", err)
			}
			a.printf("✓ Rated %s %s (id %d)\n", r.Ticker, dashboard.FormatRating(&r.Rating), r.ID)
			return nil
		},
	}
	addCmd.Flags().IntVarP(&rating, "rating", "r", 0, "Rating from -5 to +5")
	addCmd.Flags().StringVar(&notes, "notes", "", "Free-text notes")
	_ = addCmd.MarkFlagRequired("rating")

	var force bool
	deleteCmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete one rating by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid rating id %q", args[0])
			}
			ok, err := a.confirmed(force, fmt.Sprintf("Delete rating %d?", id))
			if err != nil || !ok {
				return err
			}
			if err := a.client.DeleteRating(cmd.Context(), id); err != nil {
				return fmt.Errorf("deleting rating %d: %w", id, err)
			}
			a.printf("✓ Deleted rating %d\n", id)
			return nil
		},
	}
	deleteCmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	cmd.AddCommand(historyCmd, addCmd, deleteCmd)
	return cmd
}

func newNotesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "notes",
		Short: "Show rating notes grouped by symbol, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, err := a.client.ListNotes(cmd.Context())
			if err != nil {
				return fmt.Errorf("loading notes: %w", err)
			}
			groups := dashboard.GroupNotes(notes)
			if len(groups) == 0 {
				a.printf("No notes\n")
				return nil
			}
			for _, g := range groups {
				latest := g.Latest()
				a.printf("%-8s %6s  %s\n", g.Ticker, dashboard.FormatRating(&latest.Rating), dashboard.FormatDay(latest.CreatedAt))
				for i := len(g.Notes) - 1; i >= 0; i-- {
					n := g.Notes[i]
					if n.Notes == nil || *n.Notes == "" {
						continue
					}
					a.printf("    %s  %s  %s\n", dashboard.FormatDay(n.CreatedAt), dashboard.FormatRating(&n.Rating), *n.Notes)
				}
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// prices and charts
// ---------------------------------------------------------------------------

func newPricesCmd(a *app) *cobra.Command {
	var (
		interval string
		limit    int
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:   "prices TICKER",
		Short: "Show price history, cached locally as Parquet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			iv := domain.Interval(interval)
			if iv != domain.IntervalWeekly && iv != domain.IntervalMonthly {
				return fmt.Errorf("interval must be weekly or monthly, got %q", interval)
			}
			var cache store.PriceCache
			if !noCache {
				cache = store.NewParquetPriceCache(a.cfg.Storage.DataDir, a.cfg.Storage.PriceCacheTTL)
			}

			ticker := strings.ToUpper(args[0])
			bars, cached, err := store.LoadPrices(cmd.Context(), cache, a.client, iv, ticker, a.log)
			if err != nil {
				return err
			}
			if len(bars) == 0 {
				a.printf("No prices for %s\n", ticker)
				return nil
			}

			src := "api"
			if cached {
				src = "cache"
			}
			a.printf("%s %s prices (%d bars, from %s)\n", ticker, iv, len(bars), src)
			a.printf("%-10s %10s %10s %10s %10s %8s\n", "DATE", "OPEN", "HIGH", "LOW", "CLOSE", "YOY")
			a.rule(63)
			shown := 0
			for i := len(bars) - 1; i >= 0 && (limit <= 0 || shown < limit); i-- {
				b := bars[i]
				a.printf("%-10s %10s %10s %10s %10s %8s\n",
					dashboard.FormatDay(b.Date),
					dashboard.FormatPrice(&b.Open), dashboard.FormatPrice(&b.High),
					dashboard.FormatPrice(&b.Low), dashboard.FormatPrice(&b.Close),
					dashboard.FormatPercent(b.YoY, 1))
				shown++
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&interval, "interval", "i", string(domain.IntervalWeekly), "weekly or monthly")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Newest bars to show, 0 for all")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Bypass the local price cache")
	return cmd
}

func newChartCmd(a *app) *cobra.Command {
	var (
		packageID string
		histogram bool
		output    string
	)

	cmd := &cobra.Command{
		Use:   "chart TICKER",
		Short: "Download a symbol's chart or histogram PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ticker := strings.ToUpper(args[0])
			kind := "chart"
			if histogram {
				kind = "histogram"
			}

			var path string
			switch {
			case packageID != "" && histogram:
				path = gofins.AnalysisHistogramPath(packageID, ticker)
			case packageID != "":
				path = gofins.AnalysisChartPath(packageID, ticker)
			case histogram:
				path = gofins.HistogramPath(ticker)
			default:
				path = gofins.ChartPath(ticker)
			}

			data, err := a.client.FetchImage(cmd.Context(), path)
			if err != nil {
				return fmt.Errorf("fetching %s %s: %w", ticker, kind, err)
			}
			if output == "" {
				output = fmt.Sprintf("%s-%s.png", ticker, kind)
			}
			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("creating %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
			a.printf("✓ Wrote %s (%d bytes)\n", output, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&packageID, "analysis", "a", "", "Render for this analysis package")
	cmd.Flags().BoolVar(&histogram, "histogram", false, "Download the return histogram instead of the chart")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default TICKER-KIND.png)")
	return cmd
}
