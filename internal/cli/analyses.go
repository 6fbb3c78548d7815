package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"finsview/internal/analysis"
	"finsview/internal/dashboard"
	"finsview/internal/domain"
	"finsview/pkg/gofins"
)

func newAnalysesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyses",
		Short: "Create, inspect and manage analysis packages",
	}
	cmd.AddCommand(
		newAnalysesListCmd(a),
		newAnalysesShowCmd(a),
		newAnalysesResultsCmd(a),
		newAnalysesCreateCmd(a),
		newAnalysesRenameCmd(a),
		newAnalysesDeleteCmd(a),
		newAnalysesWaitCmd(a),
	)
	return cmd
}

func newAnalysesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List analysis packages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs, err := a.client.ListAnalyses(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing analyses: %w", err)
			}
			if len(pkgs) == 0 {
				a.printf("No analyses\n")
				return nil
			}
			a.printf("%-36s %-30s %-10s %-8s %-17s %7s  %s\n", "ID", "NAME", "STATUS", "INTERVAL", "RANGE", "SYMBOLS", "CREATED")
			a.rule(130)
			for _, p := range pkgs {
				a.printf("%-36s %-30s %-10s %-8s %-17s %7d  %s\n",
					p.ID, dashboard.PadOrTrunc(p.Name, 30), p.Status, p.Interval,
					dashboard.FormatMonth(p.TimeFrom)+" – "+dashboard.FormatMonth(p.TimeTo),
					p.SymbolCount, p.CreatedAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newAnalysesShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one analysis package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.client.GetAnalysis(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("loading analysis %s: %w", args[0], err)
			}
			a.printPackage(p)
			return nil
		},
	}
}

func (a *app) printPackage(p domain.AnalysisPackage) {
	inceptionMax := dashboard.NA
	if p.InceptionMax != nil {
		inceptionMax = dashboard.FormatDay(*p.InceptionMax)
	}
	fields := []struct{ label, value string }{
		{"ID", p.ID},
		{"Name", p.Name},
		{"Status", string(p.Status)},
		{"Created", p.CreatedAt.Local().Format("2006-01-02 15:04:05")},
		{"Interval", string(p.Interval)},
		{"Range", dashboard.FormatMonth(p.TimeFrom) + " – " + dashboard.FormatMonth(p.TimeTo)},
		{"Min mcap", dashboard.FormatMarketCap(p.McapMin)},
		{"Inception max", inceptionMax},
		{"Histogram", fmt.Sprintf("%d bins, %g%% to %g%%", p.HistBins, p.HistMin, p.HistMax)},
		{"Symbols", fmt.Sprint(p.SymbolCount)},
	}
	for _, f := range fields {
		a.printf("%-14s %s\n", f.label+":", f.value)
	}
}

func newAnalysesResultsCmd(a *app) *cobra.Command {
	var (
		in     analysis.FilterInput
		sortBy string
		asc    bool
		weight float64
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "results ID",
		Short: "Rank the results of a ready analysis",
		Long: `Rank the per-symbol results of a ready analysis. The score is
mean*weight - stddev*(1-weight).
Example: finsview-cli analyses results ID --mean-min 5 --weight 0.7 -n 20`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order := analysis.Order{Field: analysis.Field(sortBy), Desc: !asc}
			if !validField(order.Field) {
				return fmt.Errorf("unknown sort field %q", sortBy)
			}
			if weight < 0 || weight > 1 {
				return fmt.Errorf("weight must be between 0 and 1, got %g", weight)
			}
			filter, err := in.Parse()
			if err != nil {
				return err
			}

			id := args[0]
			p, err := a.client.GetAnalysis(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("loading analysis %s: %w", id, err)
			}
			if p.Status != domain.StatusReady {
				return fmt.Errorf("analysis %s is %s, results are available once it is ready", id, p.Status)
			}
			results, err := a.client.AnalysisResults(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("loading results of %s: %w", id, err)
			}

			rows := analysis.Rows(results, filter, order, weight)
			a.printf("%s: %d of %d results, weight %.1f\n", p.Name, len(rows), len(results), weight)
			a.printf("%-8s %-9s %9s %9s %9s\n",
				"SYMBOL"+order.Indicator(analysis.FieldSymbol),
				"INCEPTION"+order.Indicator(analysis.FieldInception),
				"MEAN"+order.Indicator(analysis.FieldMean),
				"STDDEV"+order.Indicator(analysis.FieldStdDev),
				"SCORE"+order.Indicator(analysis.FieldScore))
			a.rule(48)
			for i, r := range rows {
				if limit > 0 && i >= limit {
					break
				}
				a.printf("%-8s %-9s %9.2f %9.2f %9.2f\n", r.Symbol, dashboard.FormatYear(r.Inception), r.Mean, r.StdDev, r.Score)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.InceptionFrom, "inception-from", "", "Earliest inception (YYYY, YYYY-MM or YYYY-MM-DD)")
	f.StringVar(&in.InceptionTo, "inception-to", "", "Latest inception date (YYYY means YYYY-01-01)")
	f.StringVar(&in.MeanMin, "mean-min", "", "Minimum mean return")
	f.StringVar(&in.MeanMax, "mean-max", "", "Maximum mean return")
	f.StringVar(&in.StdDevMin, "stddev-min", "", "Minimum standard deviation")
	f.StringVar(&in.StdDevMax, "stddev-max", "", "Maximum standard deviation")
	f.StringVar(&sortBy, "sort", string(analysis.DefaultOrder.Field), "Sort field: symbol, inception, mean, stddev or score")
	f.BoolVar(&asc, "asc", false, "Sort ascending")
	f.Float64VarP(&weight, "weight", "w", analysis.DefaultWeight, "Score weight of the mean, 0 to 1")
	f.IntVarP(&limit, "limit", "n", 0, "Rows to show, 0 for all")
	return cmd
}

func validField(f analysis.Field) bool {
	for _, x := range analysis.Fields {
		if x == f {
			return true
		}
	}
	return false
}

func newAnalysesCreateCmd(a *app) *cobra.Command {
	form := analysis.DefaultCreateForm()
	var (
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Start a new analysis",
		Long: `Start a new analysis over the symbols matching the screen.
Example: finsview-cli analyses create --name "Large caps" --from 2009 --mcap-min 10000000000 --wait`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := form.Request()
			if err != nil {
				return err
			}
			resp, err := a.client.CreateAnalysis(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("creating analysis: %w", err)
			}
			a.printf("✓ Created analysis %s (%s)\n", resp.PackageID, resp.Status)
			if !wait {
				return nil
			}
			return a.wait(cmd.Context(), resp.PackageID, timeout)
		},
	}

	f := cmd.Flags()
	f.StringVar(&form.Name, "name", "", "Analysis name")
	f.StringVar(&form.Interval, "interval", form.Interval, "daily, weekly or monthly")
	f.StringVar(&form.TimeFrom, "from", form.TimeFrom, "Start of the time range")
	f.StringVar(&form.TimeTo, "to", form.TimeTo, "End of the time range, empty for now")
	f.StringVar(&form.McapMin, "mcap-min", form.McapMin, "Minimum market cap in USD")
	f.StringVar(&form.InceptionMax, "inception-max", form.InceptionMax, "Only symbols listed before this date")
	f.StringVar(&form.HistMin, "hist-min", form.HistMin, "Histogram lower bound in percent")
	f.StringVar(&form.HistMax, "hist-max", form.HistMax, "Histogram upper bound in percent")
	f.StringVar(&form.HistBins, "hist-bins", form.HistBins, "Histogram bin count")
	f.BoolVar(&wait, "wait", false, "Wait until the analysis leaves processing")
	f.DurationVar(&timeout, "timeout", 30*time.Minute, "Give up waiting after this long")
	return cmd
}

func newAnalysesRenameCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename an analysis",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(strings.Join(args[1:], " "))
			if name == "" {
				return &gofins.ValidationError{Field: "name", Message: "Name cannot be empty"}
			}
			p, err := a.client.RenameAnalysis(cmd.Context(), args[0], name)
			if err != nil {
				return fmt.Errorf("renaming analysis %s: %w", args[0], err)
			}
			a.printf("✓ Renamed %s to %q\n", p.ID, p.Name)
			return nil
		},
	}
}

func newAnalysesDeleteCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an analysis and its results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			ok, err := a.confirmed(force, fmt.Sprintf("Delete analysis %s?", id))
			if err != nil || !ok {
				return err
			}
			if err := a.client.DeleteAnalysis(cmd.Context(), id); err != nil {
				return fmt.Errorf("deleting analysis %s: %w", id, err)
			}
			a.printf("✓ Deleted analysis %s\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")
	return cmd
}

func newAnalysesWaitCmd(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "wait ID",
		Short: "Poll an analysis until it is ready or failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.wait(cmd.Context(), args[0], timeout)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Give up after this long")
	return cmd
}

// wait polls id until it leaves processing, printing each status change.
func (a *app) wait(ctx context.Context, id string, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	p := analysis.NewPoller(a.client, a.cfg.Poller.Interval, a.log)
	var (
		last    domain.AnalysisStatus
		final   *domain.AnalysisPackage
		failure error
	)
	err := p.Run(ctx, id, func(u analysis.Update) {
		switch {
		case u.NotFound:
			failure = fmt.Errorf("analysis %s: %w", id, gofins.ErrNotFound)
		case u.Err != nil && u.Done:
			failure = u.Err
		case u.Err != nil:
			a.log.Warn("polling analysis", "id", id, "error", u.Err)
		}
		if u.Package != nil {
			final = u.Package
			if u.Package.Status != last {
				last = u.Package.Status
				a.printf("%s  %s  %s\n", time.Now().Format("15:04:05"), id, last)
			}
		}
		if u.ResultsLoaded {
			a.printf("%d results\n", len(u.Results))
		}
	})
	if err != nil {
		return fmt.Errorf("waiting for analysis %s: %w", id, err)
	}
	if failure != nil {
		return failure
	}
	if final != nil && final.Status == domain.StatusFailed {
		return fmt.Errorf("analysis %s failed", id)
	}
	return nil
}
