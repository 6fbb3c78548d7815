package analysis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"finsview/internal/domain"
	"finsview/pkg/gofins"
)

// DefaultPollInterval is the delay between status checks.
const DefaultPollInterval = 2 * time.Second

// PackageSource fetches analysis state. *gofins.Client satisfies it.
type PackageSource interface {
	GetAnalysis(ctx context.Context, id string) (domain.AnalysisPackage, error)
	AnalysisResults(ctx context.Context, id string) ([]domain.AnalysisResult, error)
}

var _ PackageSource = (*gofins.Client)(nil)

// Update is one observation emitted by the poller.
type Update struct {
	ID      string
	Package *domain.AnalysisPackage // set after a successful status fetch
	Results []domain.AnalysisResult // set with ResultsLoaded
	// ResultsLoaded marks the single results fetch that follows Ready.
	ResultsLoaded bool
	Err           error
	NotFound      bool
	Done          bool // no further updates follow
}

// Poller watches one analysis until it leaves processing.
type Poller struct {
	src      PackageSource
	interval time.Duration
	log      *slog.Logger
}

// NewPoller creates a Poller. A non-positive interval selects
// DefaultPollInterval.
func NewPoller(src PackageSource, interval time.Duration, log *slog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if log == nil {
		log = slog.Default()
	}
	return &Poller{src: src, interval: interval, log: log}
}

// Run fetches the package immediately and then every interval while it is
// processing. On ready it fetches results exactly once; on any terminal
// status it stops. Transport errors are emitted and polling continues. A
// missing package is terminal. Run returns ctx.Err() when cancelled and nil
// once the package reaches a terminal state.
func (p *Poller) Run(ctx context.Context, id string, emit func(Update)) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		done, err := p.poll(ctx, id, emit)
		if done || err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context, id string, emit func(Update)) (bool, error) {
	pkg, err := p.src.GetAnalysis(ctx, id)
	if ctx.Err() != nil {
		return true, ctx.Err()
	}
	switch {
	case errors.Is(err, gofins.ErrNotFound):
		p.log.Info("analysis not found", "id", id)
		emit(Update{ID: id, Err: err, NotFound: true, Done: true})
		return true, nil
	case err != nil:
		p.log.Warn("polling analysis", "id", id, "error", err)
		emit(Update{ID: id, Err: err})
		return false, nil
	}

	if !pkg.Status.Terminal() {
		emit(Update{ID: id, Package: &pkg})
		return false, nil
	}

	p.log.Info("analysis finished", "id", id, "status", pkg.Status)
	if pkg.Status != domain.StatusReady {
		emit(Update{ID: id, Package: &pkg, Done: true})
		return true, nil
	}

	emit(Update{ID: id, Package: &pkg})
	results, err := p.src.AnalysisResults(ctx, id)
	if err != nil {
		p.log.Warn("loading analysis results", "id", id, "error", err)
		emit(Update{ID: id, Err: err, Done: true})
		return true, nil
	}
	emit(Update{ID: id, Results: results, ResultsLoaded: true, Done: true})
	return true, nil
}

// Start runs the poller on its own goroutine and delivers updates on the
// returned channel, which is closed when polling ends or ctx is cancelled.
func (p *Poller) Start(ctx context.Context, id string) <-chan Update {
	ch := make(chan Update, 4)
	go func() {
		defer close(ch)
		_ = p.Run(ctx, id, func(u Update) {
			select {
			case ch <- u:
			case <-ctx.Done():
			}
		})
	}()
	return ch
}
