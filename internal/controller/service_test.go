package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/perf_console/internal/aggregate"
	"github.com/dgnsrekt/perf_console/internal/filter"
	"github.com/dgnsrekt/perf_console/internal/refresh"
)

var testLoc = time.FixedZone("UTC+1", 60*60)

var testNow = time.Date(2026, time.May, 20, 10, 7, 0, 0, testLoc)

type stubBackend struct {
	mu        sync.Mutex
	charts    []aggregate.ChartQuery
	summaries []aggregate.SummaryQuery

	series   []aggregate.Series
	page     aggregate.SummaryPage
	chartErr error
}

func (b *stubBackend) Stacked(ctx context.Context, q aggregate.ChartQuery) ([]aggregate.Series, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.charts = append(b.charts, q)
	return b.series, b.chartErr
}

func (b *stubBackend) Summaries(ctx context.Context, q aggregate.SummaryQuery) (aggregate.SummaryPage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.summaries = append(b.summaries, q)
	return b.page, nil
}

func (b *stubBackend) counts() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.charts), len(b.summaries)
}

func (b *stubBackend) lastChart() aggregate.ChartQuery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.charts[len(b.charts)-1]
}

func (b *stubBackend) lastSummary() aggregate.SummaryQuery {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.summaries[len(b.summaries)-1]
}

type chanSink struct {
	queries chan string
}

func (s *chanSink) ReplaceLocation(ctx context.Context, query string) error {
	s.queries <- query
	return nil
}

func testSettings() filter.Settings {
	return filter.Settings{
		DefaultTransactionType: "Web",
		TransactionTypes:       []string{"Web", "Background"},
		Interval:               5 * time.Minute,
		Loc:                    testLoc,
	}
}

func newTestService(t *testing.T, backend *stubBackend, opts Options) (*Service, *refresh.Coordinator) {
	t.Helper()
	coord := refresh.NewCoordinator(backend, refresh.Options{SummaryDelay: time.Millisecond})
	if opts.ZoomDelay == 0 {
		opts.ZoomDelay = 10 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}
	svc := NewService(coord, filter.New(testSettings(), testNow), opts)
	t.Cleanup(func() {
		svc.Close()
		coord.Close()
	})
	return svc, coord
}

func wait[T any](t *testing.T, f *refresh.Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	v, err := f.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("timed out waiting for future")
	}
	return v, err
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRequireNonEmpty(t *testing.T) {
	s := &Service{}
	if err := s.requireNonEmpty("Web", "transaction_type"); err != nil {
		t.Fatalf("requireNonEmpty() = %v; want nil", err)
	}

	if err := s.requireNonEmpty("   ", "transaction_type"); err == nil {
		t.Fatalf("requireNonEmpty() = nil; want validation error")
	} else if got, ok := err.(*aggregate.CodedError); !ok {
		t.Fatalf("requireNonEmpty() = %T; want *aggregate.CodedError", err)
	} else if got.Code != aggregate.CodeValidation {
		t.Fatalf("requireNonEmpty() code = %q; want %q", got.Code, aggregate.CodeValidation)
	} else if got.Message != "transaction_type is required" {
		t.Fatalf("requireNonEmpty() message = %q; want %q", got.Message, "transaction_type is required")
	}
}

func TestSetTransactionType_RequiresNonEmptyType(t *testing.T) {
	s := &Service{}
	_, err := s.SetTransactionType("   ")
	var got *aggregate.CodedError
	if !errors.As(err, &got) {
		t.Fatalf("SetTransactionType() error type = %T; want *aggregate.CodedError", err)
	}
	if got.Code != aggregate.CodeValidation {
		t.Fatalf("SetTransactionType() code = %q; want %q", got.Code, aggregate.CodeValidation)
	}
}

func TestSetTransactionTypeRejectsUnknownType(t *testing.T) {
	backend := &stubBackend{}
	svc, _ := newTestService(t, backend, Options{})

	_, err := svc.SetTransactionType("Batch")
	var got *aggregate.CodedError
	if !errors.As(err, &got) || got.Code != aggregate.CodeValidation {
		t.Fatalf("SetTransactionType(Batch) error = %v; want validation error", err)
	}
	if tt := svc.Filter().TransactionType; tt != "Web" {
		t.Fatalf("TransactionType = %q; want unchanged", tt)
	}
	if charts, summaries := backend.counts(); charts != 0 || summaries != 0 {
		t.Fatalf("fetches = %d/%d; want none", charts, summaries)
	}
}

func TestSortDuringSummaryHeadStart(t *testing.T) {
	backend := &stubBackend{}
	coord := refresh.NewCoordinator(backend, refresh.Options{SummaryDelay: 50 * time.Millisecond})
	svc := NewService(coord, filter.New(testSettings(), testNow), Options{Now: func() time.Time { return testNow }})
	t.Cleanup(func() {
		svc.Close()
		coord.Close()
	})

	all := svc.Refresh()
	sorted, err := svc.Sort("count")
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if _, err := wait(t, sorted); err != nil {
		t.Fatalf("sort refresh error = %v", err)
	}
	if _, err := wait(t, all); err != nil {
		t.Fatalf("refresh error = %v", err)
	}

	got := backend.lastSummary()
	if got.SortAttribute != "count" || got.SortDirection != filter.SortDesc {
		t.Fatalf("last applied summary sort = %s/%s; want count/desc", got.SortAttribute, got.SortDirection)
	}
	if ind := svc.SortIndicator("count"); ind != filter.SortDesc {
		t.Fatalf("SortIndicator(count) = %q; want desc", ind)
	}
}

func TestSetTransactionTypeClearsSelectedTransaction(t *testing.T) {
	backend := &stubBackend{}
	svc, _ := newTestService(t, backend, Options{})
	if _, err := wait(t, svc.SelectTransaction("/checkout")); err != nil {
		t.Fatalf("SelectTransaction() error = %v", err)
	}

	fut, err := svc.SetTransactionType("Background")
	if err != nil {
		t.Fatalf("SetTransactionType() error = %v", err)
	}
	if _, err := wait(t, fut); err != nil {
		t.Fatalf("refresh error = %v", err)
	}

	if got := svc.Filter().TransactionName; got != "" {
		t.Fatalf("TransactionName = %q; want cleared", got)
	}
	if got := backend.lastChart(); got.TransactionType != "Background" || got.TransactionName != "" {
		t.Fatalf("chart query = %+v", got)
	}
	if got := svc.Location(); got != "transaction-type=Background" {
		t.Fatalf("Location() = %q", got)
	}
}

func TestSetTransactionTypeUnchangedDoesNotFetch(t *testing.T) {
	backend := &stubBackend{}
	svc, _ := newTestService(t, backend, Options{})
	fut, err := svc.SetTransactionType("Web")
	if err != nil {
		t.Fatalf("SetTransactionType() error = %v", err)
	}
	if !fut.Settled() {
		t.Fatal("future not settled for unchanged type")
	}
	if charts, summaries := backend.counts(); charts != 0 || summaries != 0 {
		t.Fatalf("fetches = %d/%d; want none", charts, summaries)
	}
}

func TestSortRefreshesOnlySummaries(t *testing.T) {
	backend := &stubBackend{}
	svc, coord := newTestService(t, backend, Options{})

	fut, err := svc.Sort("total")
	if err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	if _, err := wait(t, fut); err != nil {
		t.Fatalf("summary refresh error = %v", err)
	}
	coord.Wait()

	if charts, summaries := backend.counts(); charts != 0 || summaries != 1 {
		t.Fatalf("fetches = %d/%d; want 0/1", charts, summaries)
	}
	if got := backend.lastSummary(); got.SortAttribute != "total" || got.SortDirection != "asc" {
		t.Fatalf("summary query = %+v", got)
	}
	if got := svc.Location(); got != "sort-attribute=total&sort-direction=asc" {
		t.Fatalf("Location() = %q", got)
	}
	if got := svc.SortIndicator("total"); got != "asc" {
		t.Fatalf("SortIndicator(total) = %q; want asc", got)
	}
	if got := svc.SortIndicator("count"); got != "" {
		t.Fatalf("SortIndicator(count) = %q; want empty", got)
	}
}

func TestShowMoreDoublesLimit(t *testing.T) {
	backend := &stubBackend{}
	svc, _ := newTestService(t, backend, Options{})

	if _, err := wait(t, svc.ShowMore()); err != nil {
		t.Fatalf("ShowMore() error = %v", err)
	}
	if got := backend.lastSummary().Limit; got != 50 {
		t.Fatalf("limit = %d; want 50", got)
	}
}

func TestZoomBurstRefreshesOnce(t *testing.T) {
	backend := &stubBackend{}
	svc, _ := newTestService(t, backend, Options{ZoomDelay: 30 * time.Millisecond})

	day := time.Date(2026, time.May, 20, 0, 0, 0, 0, testLoc)
	var last filter.Params
	for i := 0; i < 5; i++ {
		params, err := svc.Zoom(day.Add(time.Duration(8+i)*time.Hour), day.Add(time.Duration(10+i)*time.Hour))
		if err != nil {
			t.Fatalf("Zoom() error = %v", err)
		}
		last = params
	}

	eventually(t, func() bool {
		charts, summaries := backend.counts()
		return charts == 1 && summaries == 1
	})
	time.Sleep(80 * time.Millisecond)
	if charts, summaries := backend.counts(); charts != 1 || summaries != 1 {
		t.Fatalf("fetches = %d/%d; want exactly one of each", charts, summaries)
	}
	if got := backend.lastChart(); got.From != last.From || got.To != last.To {
		t.Fatalf("chart query = %+v; want last zoom range %d-%d", got, last.From, last.To)
	}
	if last.RangeIsDefault {
		t.Fatal("RangeIsDefault = true after zoom")
	}
}

func TestZoomRequiresBounds(t *testing.T) {
	svc, _ := newTestService(t, &stubBackend{}, Options{})
	if _, err := svc.Zoom(time.Time{}, testNow); err == nil {
		t.Fatal("Zoom() error = nil; want validation error")
	}
}

func TestSelectRefreshesImmediately(t *testing.T) {
	backend := &stubBackend{}
	svc, _ := newTestService(t, backend, Options{ZoomDelay: time.Hour})

	day := time.Date(2026, time.May, 20, 0, 0, 0, 0, testLoc)
	svc.Pan(-time.Hour)
	fut, err := svc.Select(day.Add(6*time.Hour), day.Add(7*time.Hour))
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if _, err := wait(t, fut); err != nil {
		t.Fatalf("Select() refresh error = %v", err)
	}
	if got := backend.lastChart(); got.From != day.Add(6*time.Hour).UnixMilli() {
		t.Fatalf("chart query = %+v", got)
	}
	loc := svc.Location()
	if loc == "" {
		t.Fatal("Location() empty after select")
	}
}

func TestSetFilterDateRebasesRange(t *testing.T) {
	backend := &stubBackend{}
	svc, _ := newTestService(t, backend, Options{})
	before := svc.Filter()

	fut, err := svc.SetFilterDate(testNow.AddDate(0, 0, -1))
	if err != nil {
		t.Fatalf("SetFilterDate() error = %v", err)
	}
	if _, err := wait(t, fut); err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	got := backend.lastChart()
	if want := before.From.AddDate(0, 0, -1).UnixMilli(); got.From != want {
		t.Fatalf("chart from = %d; want %d", got.From, want)
	}
	if svc.Filter().RangeIsDefault {
		t.Fatal("RangeIsDefault = true after moving day")
	}

	same, err := svc.SetFilterDate(testNow.AddDate(0, 0, -1))
	if err != nil || !same.Settled() {
		t.Fatalf("SetFilterDate(same day) = %v, settled=%v", err, same.Settled())
	}
}

func TestSelectTransactionRefreshesChartOnly(t *testing.T) {
	backend := &stubBackend{series: []aggregate.Series{{MetricName: "http", Data: []aggregate.Point{{1, 1}}}}}
	svc, coord := newTestService(t, backend, Options{})

	series, err := wait(t, svc.SelectTransaction("/orders"))
	if err != nil {
		t.Fatalf("SelectTransaction() error = %v", err)
	}
	coord.Wait()
	if len(series) != 1 || series[0].Label != "http" {
		t.Fatalf("series = %+v", series)
	}
	if charts, summaries := backend.counts(); charts != 1 || summaries != 0 {
		t.Fatalf("fetches = %d/%d; want 1/0", charts, summaries)
	}
	if got := coord.Snapshot().PlotTransactionName; got != "/orders" {
		t.Fatalf("PlotTransactionName = %q", got)
	}
}

func TestLocationSinkReceivesChanges(t *testing.T) {
	sink := &chanSink{queries: make(chan string, 4)}
	svc, _ := newTestService(t, &stubBackend{}, Options{Sink: sink})

	if _, err := svc.Sort("count"); err != nil {
		t.Fatalf("Sort() error = %v", err)
	}
	select {
	case got := <-sink.queries:
		if got != "sort-attribute=count" {
			t.Fatalf("pushed location = %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("location never pushed")
	}
}

func TestApplyLocation(t *testing.T) {
	backend := &stubBackend{}
	svc, _ := newTestService(t, backend, Options{})

	if _, err := svc.ApplyLocation("%zz"); err == nil {
		t.Fatal("ApplyLocation() error = nil for malformed query")
	}
	if _, err := svc.ApplyLocation("transaction-type=Batch"); err == nil {
		t.Fatal("ApplyLocation() error = nil for unknown transaction type")
	}

	fut, err := svc.ApplyLocation("?transaction-type=Background&transaction-name=batch")
	if err != nil {
		t.Fatalf("ApplyLocation() error = %v", err)
	}
	if _, err := wait(t, fut); err != nil {
		t.Fatalf("refresh error = %v", err)
	}
	if got := backend.lastChart(); got.TransactionType != "Background" || got.TransactionName != "batch" {
		t.Fatalf("chart query = %+v", got)
	}
}

func TestRefreshFailureSurfacesBanner(t *testing.T) {
	backend := &stubBackend{chartErr: &aggregate.CodedError{Code: aggregate.CodeTransport}}
	svc, _ := newTestService(t, backend, Options{})

	_, err := wait(t, svc.Refresh())
	var rerr *refresh.Error
	if !errors.As(err, &rerr) || rerr.Banner != aggregate.BannerUnreachable {
		t.Fatalf("Refresh() error = %v; want unreachable banner", err)
	}
	if got := svc.Dashboard().View.ChartError; got != aggregate.BannerUnreachable {
		t.Fatalf("ChartError = %q", got)
	}
}

func TestParseDay(t *testing.T) {
	svc, _ := newTestService(t, &stubBackend{}, Options{})
	day, err := svc.ParseDay("2026-05-19")
	if err != nil {
		t.Fatalf("ParseDay() error = %v", err)
	}
	if want := time.Date(2026, time.May, 19, 0, 0, 0, 0, testLoc); !day.Equal(want) {
		t.Fatalf("ParseDay() = %v; want %v", day, want)
	}
	if _, err := svc.ParseDay("19/05/2026"); err == nil {
		t.Fatal("ParseDay() error = nil for malformed date")
	}
}
