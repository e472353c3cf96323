package tlefetch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/skyframe/core"
	"github.com/signalsfoundry/skyframe/internal/logging"
	"github.com/signalsfoundry/skyframe/internal/nav"
	"github.com/signalsfoundry/skyframe/internal/observability"
	"github.com/signalsfoundry/skyframe/kb"
	"github.com/signalsfoundry/skyframe/model"
)

// Import outcomes, used as metric labels.
const (
	ResultAdded   = "added"
	ResultUpdated = "updated"
	ResultStale   = "stale"
	ResultInvalid = "invalid"
)

// Queue defers graph mutations to the next tick.
type Queue interface {
	Enqueue(fn func(*nav.Graphs))
}

// Recorder receives import counts by result.
type Recorder interface {
	AddTLEImports(result string, n int)
}

// Result summarises one applied import.
type Result struct {
	Source  string
	Added   []string
	Updated []string
	Stale   int
	Invalid int
}

// Importer turns fetched element sets into orbital frames under a parent
// frame. Mutations go through the queue so they are applied between ticks.
type Importer struct {
	queue   Queue
	parent  string
	log     logging.Logger
	metrics Recorder

	mu     sync.Mutex
	onDone []func(Result)
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithLogger sets the importer's logger.
func WithLogger(l logging.Logger) ImporterOption {
	return func(im *Importer) {
		if l != nil {
			im.log = l
		}
	}
}

// WithRecorder wires import metrics.
func WithRecorder(r Recorder) ImporterOption {
	return func(im *Importer) {
		im.metrics = r
	}
}

// OnApplied registers fn to run after each import has been applied.
func OnApplied(fn func(Result)) ImporterOption {
	return func(im *Importer) {
		if fn != nil {
			im.onDone = append(im.onDone, fn)
		}
	}
}

// NewImporter creates an Importer placing satellites under parent.
func NewImporter(q Queue, parent string, opts ...ImporterOption) *Importer {
	im := &Importer{queue: q, parent: parent, log: logging.Noop()}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// FrameName names the frame for an entry: the catalogue name when present,
// otherwise the NORAD number.
func FrameName(e core.TLEEntry) string {
	if e.Name != "" {
		return e.Name
	}
	return fmt.Sprintf("NORAD %05d", e.CatalogNumber)
}

// Import enqueues entries for the next tick. Frames that already exist are
// updated in place. If the parent frame has gone by the time the mutation
// runs, every entry is counted stale.
func (im *Importer) Import(ctx context.Context, source string, entries []core.TLEEntry) {
	ctx = context.WithoutCancel(ctx)
	im.queue.Enqueue(func(g *nav.Graphs) {
		res := im.apply(g.Persistent, source, entries)
		im.report(ctx, res)
	})
}

func (im *Importer) apply(g *kb.FrameGraph, source string, entries []core.TLEEntry) Result {
	res := Result{Source: source}
	if !g.Exists(im.parent) {
		res.Stale = len(entries)
		return res
	}
	for _, e := range entries {
		f := &model.ReferenceFrame{
			Name:          FrameName(e),
			Kind:          model.FrameOrbital,
			Elements:      e.Elements(),
			TLELine1:      e.Line1,
			TLELine2:      e.Line2,
			ShowOrbitPath: true,
		}
		if g.Exists(f.Name) {
			if err := g.Update(f); err != nil {
				res.Invalid++
				continue
			}
			res.Updated = append(res.Updated, f.Name)
			continue
		}
		if err := g.Add(f, im.parent); err != nil {
			res.Invalid++
			continue
		}
		res.Added = append(res.Added, f.Name)
	}
	return res
}

func (im *Importer) report(ctx context.Context, res Result) {
	im.log.Info(ctx, "TLE import applied",
		logging.String("source", res.Source),
		logging.Int("added", len(res.Added)),
		logging.Int("updated", len(res.Updated)),
		logging.Int("stale", res.Stale),
		logging.Int("invalid", res.Invalid),
	)
	im.record(ResultAdded, len(res.Added))
	im.record(ResultUpdated, len(res.Updated))
	im.record(ResultStale, res.Stale)
	im.record(ResultInvalid, res.Invalid)

	im.mu.Lock()
	callbacks := append([]func(Result){}, im.onDone...)
	im.mu.Unlock()
	for _, fn := range callbacks {
		fn(res)
	}
}

func (im *Importer) record(result string, n int) {
	if im.metrics != nil && n > 0 {
		im.metrics.AddTLEImports(result, n)
	}
}

// Sync fetches one catalogue and enqueues its import. It returns the
// number of entries queued.
func (im *Importer) Sync(ctx context.Context, f *Fetcher) (int, error) {
	ctx, span := observability.StartSpan(ctx, "skyframe.tle_import",
		attribute.String("skyframe.tle.source", f.SourceURL()))

	entries, err := f.Fetch(ctx)
	if err != nil {
		var fe *core.FormatError
		if errors.As(err, &fe) {
			im.record(ResultInvalid, 1)
		}
		observability.EndSpan(span, err)
		return 0, err
	}
	span.SetAttributes(attribute.Int("skyframe.tle.entries", len(entries)))
	im.Import(ctx, f.SourceURL(), entries)
	observability.EndSpan(span, nil)
	return len(entries), nil
}

// Run syncs every fetcher immediately and then once per interval until ctx
// is done. Fetch failures are logged and retried on the next round.
func (im *Importer) Run(ctx context.Context, fetchers []*Fetcher, interval time.Duration) {
	if len(fetchers) == 0 {
		return
	}
	syncAll := func() {
		for _, f := range fetchers {
			n, err := im.Sync(ctx, f)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				im.log.Warn(ctx, "TLE fetch failed", logging.String("source", f.SourceURL()), logging.Err(err))
				continue
			}
			im.log.Debug(ctx, "TLE catalogue queued", logging.String("source", f.SourceURL()), logging.Int("entries", n))
		}
	}

	syncAll()
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncAll()
		}
	}
}
