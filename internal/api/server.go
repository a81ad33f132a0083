package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/dgnsrekt/perf_console/internal/aggregate"
	"github.com/dgnsrekt/perf_console/internal/controller"
	"github.com/dgnsrekt/perf_console/internal/filter"
	"github.com/dgnsrekt/perf_console/internal/refresh"
	"github.com/dgnsrekt/perf_console/internal/views"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Service is the dashboard controller as driven over HTTP.
type Service interface {
	Dashboard() controller.Dashboard
	Refresh() *refresh.Future[struct{}]
	ParseDay(day string) (time.Time, error)
	SetFilterDate(day time.Time) (*refresh.Future[struct{}], error)
	SetTransactionType(transactionType string) (*refresh.Future[struct{}], error)
	SelectTransaction(name string) *refresh.Future[[]refresh.ChartSeries]
	Zoom(from, to time.Time) (filter.Params, error)
	ZoomOut() filter.Params
	ZoomIn() filter.Params
	Pan(delta time.Duration) filter.Params
	Select(from, to time.Time) (*refresh.Future[struct{}], error)
	Tooltip(dataIndex, highlightSeries int) (controller.Tooltip, error)
	Sort(attribute string) (*refresh.Future[aggregate.SummaryPage], error)
	ShowMore() *refresh.Future[aggregate.SummaryPage]
	BarWidth(totalMicros int64) string
	SortIndicator(attribute string) string
	TracesQuery(name string) string
	AggregateDetailQuery() aggregate.ChartQuery
	ApplyLocation(raw string) (*refresh.Future[struct{}], error)
	Location() string
}

// ViewStore persists saved dashboard views.
type ViewStore interface {
	Save(name, location, notes string) (views.View, error)
	Get(id string) (views.View, error)
	List() ([]views.View, error)
	Delete(id string) error
}

// Options carries the optional parts of the API. Nil fields leave their
// routes unregistered.
type Options struct {
	Views   ViewStore
	Events  http.Handler
	Stream  http.Handler
	Metrics http.Handler
}

const (
	statusApplied    = "applied"
	statusSuperseded = "superseded"
	statusPending    = "pending"
	statusScheduled  = "scheduled"
)

type dashboardResult struct {
	Status    string              `json:"status" doc:"applied, superseded, pending or scheduled"`
	Dashboard controller.Dashboard `json:"dashboard"`
}

type dashboardOutput struct {
	RefreshStatus string `header:"X-Refresh-Status"`
	Body          dashboardResult
}

type waitInput struct {
	Wait bool `query:"wait" default:"true" doc:"Block until the triggered refresh settles."`
}

func NewServer(svc Service, opts Options) http.Handler {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(requestLogger(svc))
	router.Use(middleware.Recoverer)

	cfg := huma.DefaultConfig("Performance Console API", "1.0.0")
	cfg.DocsPath = ""
	api := humachi.New(router, cfg)

	docs := docsPage(opts)
	router.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if _, err := w.Write(docs); err != nil {
			slog.Debug("docs response write failed", "error", err)
		}
	})
	if opts.Events != nil {
		router.Get("/api/v1/events", opts.Events.ServeHTTP)
	}
	if opts.Stream != nil {
		router.Get("/api/v1/events/ws", opts.Stream.ServeHTTP)
	}
	if opts.Metrics != nil {
		router.Handle("/metrics", opts.Metrics)
	}

	registerHealthHandlers(api, svc)
	registerDashboardHandlers(api, svc)
	registerChartHandlers(api, svc)
	registerFilterHandlers(api, svc)
	registerSummaryHandlers(api, svc)
	if opts.Views != nil {
		registerViewHandlers(api, svc, opts.Views)
	}

	return router
}

// await settles fut unless the caller opted out of waiting. A superseded
// refresh is not an error: a newer one owns the view.
func await[T any](ctx context.Context, fut *refresh.Future[T], wait bool) (string, error) {
	if !wait {
		return statusPending, nil
	}
	_, err := fut.Wait(ctx)
	switch {
	case err == nil:
		return statusApplied, nil
	case errors.Is(err, refresh.ErrSuperseded):
		return statusSuperseded, nil
	default:
		return "", mapErr(err)
	}
}

func dashboardResponse(svc Service, status string) *dashboardOutput {
	return &dashboardOutput{
		RefreshStatus: status,
		Body:          dashboardResult{Status: status, Dashboard: svc.Dashboard()},
	}
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, views.ErrNotFound) {
		return huma.Error404NotFound(err.Error())
	}
	if errors.Is(err, views.ErrNameMissing) {
		return huma.Error400BadRequest(err.Error())
	}
	var coded *aggregate.CodedError
	if errors.As(err, &coded) {
		msg := coded.Message
		// Failed refreshes report the banner the dashboard shows.
		var failed *refresh.Error
		if errors.As(err, &failed) {
			msg = failed.Banner
		}
		switch coded.Code {
		case aggregate.CodeValidation:
			return huma.Error400BadRequest(msg)
		case aggregate.CodeNotFound:
			return huma.Error404NotFound(msg)
		case aggregate.CodeTimeout:
			return huma.Error504GatewayTimeout(msg)
		case aggregate.CodeTransport, aggregate.CodeApplication, aggregate.CodeDecode:
			return huma.Error502BadGateway(msg)
		default:
			return huma.Error500InternalServerError(fmt.Sprintf("%s: %s", coded.Code, msg))
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return huma.Error504GatewayTimeout("refresh did not settle before the request ended")
	}
	return huma.Error500InternalServerError(err.Error())
}
