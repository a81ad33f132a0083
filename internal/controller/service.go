package controller

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/perf_console/internal/aggregate"
	"github.com/dgnsrekt/perf_console/internal/filter"
	"github.com/dgnsrekt/perf_console/internal/refresh"
)

const locationPushTimeout = 5 * time.Second

// LocationSink receives the encoded filter whenever it changes, e.g. to
// replace a browser's address bar without adding history entries.
type LocationSink interface {
	ReplaceLocation(ctx context.Context, query string) error
}

// Options tune a Service. Zero values select the defaults.
type Options struct {
	ZoomDelay time.Duration
	Sink      LocationSink
	Now       func() time.Time
}

// Service owns the dashboard filter and turns user gestures into
// coordinated refreshes.
type Service struct {
	coord *refresh.Coordinator
	zoom  *refresh.Debouncer
	now   func() time.Time

	sink   LocationSink
	locCh  chan string
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	state    filter.State
	location string
}

func NewService(coord *refresh.Coordinator, initial filter.State, opts Options) *Service {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		coord:    coord,
		zoom:     refresh.NewDebouncer(opts.ZoomDelay),
		now:      now,
		sink:     opts.Sink,
		locCh:    make(chan string, 1),
		ctx:      ctx,
		cancel:   cancel,
		state:    initial,
		location: initial.Location().Encode(),
	}
	if s.sink != nil {
		s.wg.Add(1)
		go s.pushLocations()
	}
	return s
}

// Start performs the initial load of chart and summaries.
func (s *Service) Start() *refresh.Future[struct{}] {
	return s.coord.RefreshAll(s.Filter, nil)
}

// Close stops pending zoom refreshes and the location pusher.
func (s *Service) Close() {
	s.zoom.Stop()
	s.cancel()
	s.wg.Wait()
}

func (s *Service) requireNonEmpty(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return &aggregate.CodedError{Code: aggregate.CodeValidation, Message: fieldName + " is required"}
	}
	return nil
}

// Refresh is the refresh button: if the date picker moved to another day
// the range is carried over to it, then chart and summaries reload.
func (s *Service) Refresh() *refresh.Future[struct{}] {
	s.mu.Lock()
	s.state.RebaseToFilterDate()
	s.updateLocationLocked()
	s.mu.Unlock()
	return s.coord.RefreshAll(s.Filter, refresh.NewSignal())
}

// SetTransactionType switches the transaction type and drops the selected
// transaction, which belongs to the old type.
func (s *Service) SetTransactionType(transactionType string) (*refresh.Future[struct{}], error) {
	if err := s.requireNonEmpty(transactionType, "transaction_type"); err != nil {
		return nil, err
	}
	transactionType = strings.TrimSpace(transactionType)

	s.mu.Lock()
	if !s.state.Settings.KnowsTransactionType(transactionType) {
		s.mu.Unlock()
		return nil, validationf("unknown transaction type %q", transactionType)
	}
	if s.state.TransactionType == transactionType {
		s.mu.Unlock()
		return settled(), nil
	}
	s.state.TransactionType = transactionType
	s.state.TransactionName = ""
	s.mu.Unlock()
	return s.Refresh(), nil
}

// SetFilterDate changes the viewed day.
func (s *Service) SetFilterDate(day time.Time) (*refresh.Future[struct{}], error) {
	if day.IsZero() {
		return nil, &aggregate.CodedError{Code: aggregate.CodeValidation, Message: "date is required"}
	}
	s.mu.Lock()
	changed := s.state.SetFilterDate(day)
	s.mu.Unlock()
	if !changed {
		return settled(), nil
	}
	return s.Refresh(), nil
}

// ParseDay reads a YYYY-MM-DD date in the dashboard's timezone.
func (s *Service) ParseDay(day string) (time.Time, error) {
	s.mu.Lock()
	loc := s.state.Settings.Loc
	s.mu.Unlock()
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(day), loc)
	if err != nil {
		return time.Time{}, validationf("date %q is not YYYY-MM-DD", day)
	}
	return t, nil
}

// Zoom sets the chart range to the bounds the chart settled on after a
// zoom step. Bursts of zoom steps collapse into one refresh.
func (s *Service) Zoom(from, to time.Time) (filter.Params, error) {
	if from.IsZero() || to.IsZero() {
		return filter.Params{}, &aggregate.CodedError{Code: aggregate.CodeValidation, Message: "from and to are required"}
	}
	s.mu.Lock()
	s.state.SetRange(from, to)
	s.updateLocationLocked()
	params := s.state.Params()
	s.mu.Unlock()
	s.scheduleRefresh()
	return params, nil
}

// ZoomOut doubles the visible range around its center.
func (s *Service) ZoomOut() filter.Params {
	return s.zoomBy(2)
}

// ZoomIn halves the visible range around its center.
func (s *Service) ZoomIn() filter.Params {
	return s.zoomBy(0.5)
}

func (s *Service) zoomBy(factor float64) filter.Params {
	s.mu.Lock()
	s.state.Zoom(factor)
	s.updateLocationLocked()
	params := s.state.Params()
	s.mu.Unlock()
	s.scheduleRefresh()
	return params
}

// Pan moves the visible range without changing its width.
func (s *Service) Pan(delta time.Duration) filter.Params {
	s.mu.Lock()
	s.state.Shift(delta)
	s.updateLocationLocked()
	params := s.state.Params()
	s.mu.Unlock()
	s.scheduleRefresh()
	return params
}

func (s *Service) scheduleRefresh() {
	s.zoom.Schedule(func() {
		s.coord.RefreshAll(s.Filter, nil)
	})
}

// Select zooms straight to a dragged selection and refreshes at once; any
// chart response still in flight is stale from this point.
func (s *Service) Select(from, to time.Time) (*refresh.Future[struct{}], error) {
	if from.IsZero() || to.IsZero() {
		return nil, &aggregate.CodedError{Code: aggregate.CodeValidation, Message: "from and to are required"}
	}
	s.zoom.Stop()
	s.mu.Lock()
	s.state.SetRange(from, to)
	s.updateLocationLocked()
	s.mu.Unlock()
	s.coord.Invalidate(refresh.KindChart)
	return s.coord.RefreshAll(s.Filter, nil), nil
}

// SelectTransaction narrows the chart to one transaction; an empty name
// returns to the whole type. The summary table is unaffected.
func (s *Service) SelectTransaction(name string) *refresh.Future[[]refresh.ChartSeries] {
	s.mu.Lock()
	s.state.TransactionName = strings.TrimSpace(name)
	s.updateLocationLocked()
	st := s.state
	s.mu.Unlock()
	return s.coord.RequestChartRefresh(st)
}

// Sort toggles the summary sort and reloads the table only.
func (s *Service) Sort(attribute string) (*refresh.Future[aggregate.SummaryPage], error) {
	if err := s.requireNonEmpty(attribute, "sort attribute"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.state.ToggleSort(strings.TrimSpace(attribute))
	s.updateLocationLocked()
	st := s.state
	s.mu.Unlock()
	return s.coord.RequestSummaryRefresh(st, nil), nil
}

// ShowMore doubles the number of summary rows requested.
func (s *Service) ShowMore() *refresh.Future[aggregate.SummaryPage] {
	s.mu.Lock()
	s.state.DoubleSummaryLimit()
	st := s.state
	s.mu.Unlock()
	return s.coord.RequestSummaryRefresh(st, refresh.NewSignal())
}

// ApplyLocation replaces the whole filter with one decoded from a location
// query, as when a bookmarked view is opened.
func (s *Service) ApplyLocation(raw string) (*refresh.Future[struct{}], error) {
	s.mu.Lock()
	parsed, err := filter.ParseLocation(raw, s.state.Settings, s.now())
	if err != nil {
		s.mu.Unlock()
		return nil, &aggregate.CodedError{Code: aggregate.CodeValidation, Message: "invalid location query", Cause: err}
	}
	if !parsed.Settings.KnowsTransactionType(parsed.TransactionType) {
		s.mu.Unlock()
		return nil, validationf("unknown transaction type %q", parsed.TransactionType)
	}
	s.state = parsed
	s.updateLocationLocked()
	s.mu.Unlock()
	return s.coord.RefreshAll(s.Filter, refresh.NewSignal()), nil
}

// Location is the current encoded filter without the leading '?'.
func (s *Service) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.location
}

// Filter returns a copy of the current filter.
func (s *Service) Filter() filter.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// TracesQuery encodes the trace explorer link for a transaction, or for
// the whole type when name is empty.
func (s *Service) TracesQuery(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.TracesQuery(strings.TrimSpace(name)).Encode()
}

// AggregateDetailQuery is the query the aggregate detail view is opened with.
func (s *Service) AggregateDetailQuery() aggregate.ChartQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.ChartQuery()
}

// OverallAverage is the mean response time in seconds with three decimals,
// "-" when nothing ran and "" before the first summary load.
func (s *Service) OverallAverage() string {
	return overallAverage(s.coord.Snapshot().OverallSummary)
}

func overallAverage(overall *aggregate.OverallSummary) string {
	if overall == nil {
		return ""
	}
	if overall.Count == 0 {
		return "-"
	}
	avg := float64(overall.TotalMicros) / float64(overall.Count) / 1e6
	return strconv.FormatFloat(avg, 'f', 3, 64)
}

// BarWidth sizes a summary row's bar relative to the largest row.
func (s *Service) BarWidth(totalMicros int64) string {
	return barWidth(totalMicros, s.coord.Snapshot().MaxSummaryTotalMicros)
}

func barWidth(totalMicros, maxTotalMicros int64) string {
	if maxTotalMicros <= 0 {
		return "0%"
	}
	pct := float64(totalMicros) / float64(maxTotalMicros) * 100
	return strconv.FormatFloat(pct, 'f', -1, 64) + "%"
}

// SortIndicator tells the table header how to mark a column.
func (s *Service) SortIndicator(attribute string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.SortAttribute != attribute {
		return ""
	}
	return s.state.SortDirection
}

func (s *Service) updateLocationLocked() {
	q := s.state.Location().Encode()
	if q == s.location {
		return
	}
	s.location = q
	if s.sink == nil {
		return
	}
	// Only the newest location matters; replace anything not yet pushed.
	select {
	case s.locCh <- q:
	default:
		select {
		case <-s.locCh:
		default:
		}
		select {
		case s.locCh <- q:
		default:
		}
	}
}

func (s *Service) pushLocations() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case q := <-s.locCh:
			ctx, cancel := context.WithTimeout(s.ctx, locationPushTimeout)
			if err := s.sink.ReplaceLocation(ctx, q); err != nil {
				slog.Warn("location sync failed", "query", q, "error", err)
			}
			cancel()
		}
	}
}

func settled() *refresh.Future[struct{}] {
	f := refresh.NewSignal()
	f.Resolve(struct{}{})
	return f
}

func validationf(format string, args ...any) error {
	return &aggregate.CodedError{Code: aggregate.CodeValidation, Message: fmt.Sprintf(format, args...)}
}
