package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgnsrekt/perf_console/internal/aggregate"
	"github.com/dgnsrekt/perf_console/internal/filter"
	"golang.org/x/sync/errgroup"
)

// DefaultSummaryDelay gives the chart query a head start; the backend
// serves aggregate queries on a single throttled handler and the chart
// query is the slower of the two.
const DefaultSummaryDelay = 5 * time.Millisecond

// Backend is the aggregation service as seen by the coordinator.
type Backend interface {
	Stacked(ctx context.Context, q aggregate.ChartQuery) ([]aggregate.Series, error)
	Summaries(ctx context.Context, q aggregate.SummaryQuery) (aggregate.SummaryPage, error)
}

// Options tune a Coordinator. Zero values select the defaults.
type Options struct {
	SummaryDelay time.Duration
	Observer     Observer
}

// Axis is an inclusive millisecond range.
type Axis struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// ChartSeries is one labelled band of the stacked chart.
type ChartSeries struct {
	Label string            `json:"label"`
	Data  []aggregate.Point `json:"data"`
}

// View is everything the dashboard displays that a fetch can change.
type View struct {
	XAxis               Axis          `json:"x_axis"`
	ZoomRange           Axis          `json:"zoom_range"`
	Series              []ChartSeries `json:"series"`
	PlotTransactionName string        `json:"plot_transaction_name,omitempty"`
	ChartError          string        `json:"chart_error,omitempty"`
	ChartSpinner        int           `json:"chart_spinner"`

	OverallSummary        *aggregate.OverallSummary `json:"overall_summary,omitempty"`
	Summaries             []aggregate.SummaryRow    `json:"summaries"`
	MoreAvailable         bool                      `json:"more_available"`
	MaxSummaryTotalMicros int64                     `json:"max_summary_total_micros"`
	SummaryError          string                    `json:"summary_error,omitempty"`
	TableOverlay          int                       `json:"table_overlay"`
	TableSpinner          int                       `json:"table_spinner"`

	ChartEpoch   uint64 `json:"chart_epoch"`
	SummaryEpoch uint64 `json:"summary_epoch"`
}

// Coordinator sequences chart and summary fetches. Each kind has its own
// epoch; a response is applied only if its epoch is still current when it
// arrives. Superseded fetches are not cancelled, only ignored.
type Coordinator struct {
	backend Backend
	delay   time.Duration
	obs     Observer

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	chartEpoch   uint64
	summaryEpoch uint64
	view         View
}

// NewCoordinator creates a coordinator whose fetches live until Close.
func NewCoordinator(backend Backend, opts Options) *Coordinator {
	delay := opts.SummaryDelay
	if delay <= 0 {
		delay = DefaultSummaryDelay
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		backend: backend,
		delay:   delay,
		obs:     opts.Observer,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Close abandons in-flight fetches and waits for their goroutines. Fetches
// cut short by Close settle with ErrSuperseded and report no failure.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

// Wait blocks until no fetch goroutine is running.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Snapshot returns a copy of the current view.
func (c *Coordinator) Snapshot() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.view
	v.Series = append([]ChartSeries(nil), c.view.Series...)
	v.Summaries = append([]aggregate.SummaryRow(nil), c.view.Summaries...)
	if c.view.OverallSummary != nil {
		overall := *c.view.OverallSummary
		v.OverallSummary = &overall
	}
	v.ChartEpoch = c.chartEpoch
	v.SummaryEpoch = c.summaryEpoch
	return v
}

// Invalidate bumps the epoch of kind without fetching, so whatever is in
// flight for it will be discarded.
func (c *Coordinator) Invalidate(kind Kind) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if kind == KindSummary {
		c.summaryEpoch++
		return c.summaryEpoch
	}
	c.chartEpoch++
	return c.chartEpoch
}

// RequestChartRefresh fetches the stacked series for f. On a current
// response the chart data and axis bounds are replaced; a stale response
// settles the future with ErrSuperseded and touches nothing.
func (c *Coordinator) RequestChartRefresh(f filter.State) *Future[[]ChartSeries] {
	q := f.ChartQuery()
	dayStart, dayEnd := f.DayBounds()
	zoom := Axis{Min: dayStart.UnixMilli(), Max: dayEnd.UnixMilli()}

	c.mu.Lock()
	c.chartEpoch++
	epoch := c.chartEpoch
	c.view.ChartSpinner++
	// Emitted under the lock so observers see started events in epoch order.
	c.emit(Event{Kind: KindChart, Epoch: epoch, Outcome: OutcomeStarted})
	c.mu.Unlock()

	fut := NewFuture[[]ChartSeries]()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		start := time.Now()
		data, err := c.backend.Stacked(c.ctx, q)
		elapsed := time.Since(start)

		c.mu.Lock()
		c.view.ChartSpinner--
		if epoch != c.chartEpoch || c.ctx.Err() != nil {
			c.mu.Unlock()
			c.discard(KindChart, epoch, elapsed)
			fut.Reject(ErrSuperseded)
			return
		}
		if err != nil {
			banner := aggregate.BannerMessage(err)
			c.view.ChartError = banner
			c.mu.Unlock()
			c.fail(KindChart, epoch, banner, err, elapsed)
			fut.Reject(&Error{Kind: KindChart, Banner: banner, Err: err})
			return
		}
		series := make([]ChartSeries, 0, len(data))
		for _, s := range data {
			series = append(series, ChartSeries{Label: s.Label(), Data: s.Data})
		}
		c.view.ChartError = ""
		// Axis follows the query, which may differ from a range the user
		// zoomed to after the request went out.
		c.view.XAxis = Axis{Min: q.From, Max: q.To}
		c.view.ZoomRange = zoom
		c.view.PlotTransactionName = q.TransactionName
		c.view.Series = series
		c.mu.Unlock()

		c.emit(Event{Kind: KindChart, Epoch: epoch, Outcome: OutcomeApplied, DurationMS: elapsed.Milliseconds()})
		fut.Resolve(series)
	}()
	return fut
}

// RequestSummaryRefresh fetches a page of transaction summaries for f. The
// optional signal is settled with the outcome; without one the table
// spinner is shown for the duration of the fetch.
func (c *Coordinator) RequestSummaryRefresh(f filter.State, signal *Future[struct{}]) *Future[aggregate.SummaryPage] {
	q := f.SummaryQuery()

	c.mu.Lock()
	c.summaryEpoch++
	epoch := c.summaryEpoch
	c.view.TableOverlay++
	if signal == nil {
		c.view.TableSpinner++
	}
	c.emit(Event{Kind: KindSummary, Epoch: epoch, Outcome: OutcomeStarted})
	c.mu.Unlock()

	fut := NewFuture[aggregate.SummaryPage]()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		start := time.Now()
		page, err := c.backend.Summaries(c.ctx, q)
		elapsed := time.Since(start)

		c.mu.Lock()
		c.view.TableOverlay--
		if signal == nil {
			c.view.TableSpinner--
		}
		if epoch != c.summaryEpoch || c.ctx.Err() != nil {
			c.mu.Unlock()
			c.discard(KindSummary, epoch, elapsed)
			fut.Reject(ErrSuperseded)
			signal.Reject(ErrSuperseded)
			return
		}
		if err != nil {
			banner := aggregate.BannerMessage(err)
			c.view.SummaryError = banner
			c.mu.Unlock()
			c.fail(KindSummary, epoch, banner, err, elapsed)
			rerr := &Error{Kind: KindSummary, Banner: banner, Err: err}
			fut.Reject(rerr)
			signal.Reject(rerr)
			return
		}
		rows := append([]aggregate.SummaryRow(nil), page.TransactionSummaries...)
		var maxTotal int64
		for _, row := range rows {
			if row.TotalMicros > maxTotal {
				maxTotal = row.TotalMicros
			}
		}
		c.view.SummaryError = ""
		c.view.OverallSummary = page.OverallSummary
		c.view.MoreAvailable = page.MoreAvailable
		c.view.Summaries = rows
		c.view.MaxSummaryTotalMicros = maxTotal
		c.mu.Unlock()

		c.emit(Event{Kind: KindSummary, Epoch: epoch, Outcome: OutcomeApplied, DurationMS: elapsed.Milliseconds()})
		fut.Resolve(page)
		signal.Resolve(struct{}{})
	}()
	return fut
}

// RefreshAll refreshes the chart immediately and the summaries after the
// head-start delay. current is read once for the chart and again when the
// summary fetch starts, so a sort made during the delay is not lost. The
// returned future settles once both have: nil when both were applied,
// otherwise the first failure. A non-nil signal is settled the same way and
// suppresses the table spinner.
func (c *Coordinator) RefreshAll(current func() filter.State, signal *Future[struct{}]) *Future[struct{}] {
	chart := c.RequestChartRefresh(current())

	var summarySignal *Future[struct{}]
	if signal != nil {
		summarySignal = NewSignal()
	}
	summaries := make(chan *Future[aggregate.SummaryPage], 1)
	c.wg.Add(1)
	time.AfterFunc(c.delay, func() {
		defer c.wg.Done()
		summaries <- c.RequestSummaryRefresh(current(), summarySignal)
	})

	out := NewSignal()
	go func() {
		var g errgroup.Group
		g.Go(func() error {
			_, err := chart.Wait(context.Background())
			return err
		})
		g.Go(func() error {
			_, err := (<-summaries).Wait(context.Background())
			return err
		})
		if err := g.Wait(); err != nil {
			out.Reject(err)
			signal.Reject(err)
			return
		}
		out.Resolve(struct{}{})
		signal.Resolve(struct{}{})
	}()
	return out
}

func (c *Coordinator) discard(kind Kind, epoch uint64, elapsed time.Duration) {
	slog.Debug("discarding stale refresh response", "kind", kind, "epoch", epoch)
	c.emit(Event{Kind: kind, Epoch: epoch, Outcome: OutcomeDiscarded, DurationMS: elapsed.Milliseconds()})
}

func (c *Coordinator) fail(kind Kind, epoch uint64, banner string, err error, elapsed time.Duration) {
	slog.Warn("refresh failed", "kind", kind, "epoch", epoch, "banner", banner, "error", err)
	c.emit(Event{
		Kind:       kind,
		Epoch:      epoch,
		Outcome:    OutcomeFailed,
		Banner:     banner,
		Code:       errorCode(err),
		DurationMS: elapsed.Milliseconds(),
		Err:        err,
	})
}

// emit may run with c.mu held; observers must not call back into c.
func (c *Coordinator) emit(evt Event) {
	if c.obs == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = time.Now()
	}
	c.obs.Observe(evt)
}
