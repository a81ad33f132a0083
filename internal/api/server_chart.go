package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/perf_console/internal/aggregate"
	"github.com/dgnsrekt/perf_console/internal/controller"
	"github.com/dgnsrekt/perf_console/internal/filter"
)

type rangeBody struct {
	From int64 `json:"from" required:"true" doc:"Range start, epoch milliseconds"`
	To   int64 `json:"to" required:"true" doc:"Range end, epoch milliseconds"`
}

type filterOutput struct {
	Body struct {
		Status string        `json:"status"`
		Filter filter.Params `json:"filter"`
	}
}

func scheduled(params filter.Params) *filterOutput {
	out := &filterOutput{}
	out.Body.Status = statusScheduled
	out.Body.Filter = params
	return out
}

func registerChartHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "zoom-chart", Method: http.MethodPost, Path: "/api/v1/chart/zoom", Summary: "Set the range a zoom step settled on (debounced refresh)", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct {
			Body rangeBody
		}) (*filterOutput, error) {
			params, err := svc.Zoom(time.UnixMilli(input.Body.From), time.UnixMilli(input.Body.To))
			if err != nil {
				return nil, mapErr(err)
			}
			return scheduled(params), nil
		})

	huma.Register(api, huma.Operation{OperationID: "zoom-out-chart", Method: http.MethodPost, Path: "/api/v1/chart/zoom-out", Summary: "Double the visible range (debounced refresh)", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*filterOutput, error) {
			return scheduled(svc.ZoomOut()), nil
		})

	huma.Register(api, huma.Operation{OperationID: "zoom-in-chart", Method: http.MethodPost, Path: "/api/v1/chart/zoom-in", Summary: "Halve the visible range (debounced refresh)", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*filterOutput, error) {
			return scheduled(svc.ZoomIn()), nil
		})

	huma.Register(api, huma.Operation{OperationID: "pan-chart", Method: http.MethodPost, Path: "/api/v1/chart/pan", Summary: "Move the visible range (debounced refresh)", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct {
			Body struct {
				DeltaMillis int64 `json:"delta_ms" required:"true" doc:"Shift in milliseconds; negative pans left"`
			}
		}) (*filterOutput, error) {
			return scheduled(svc.Pan(time.Duration(input.Body.DeltaMillis) * time.Millisecond)), nil
		})

	huma.Register(api, huma.Operation{OperationID: "select-chart", Method: http.MethodPost, Path: "/api/v1/chart/select", Summary: "Zoom to a dragged selection and refresh at once", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct {
			Wait bool `query:"wait" default:"true" doc:"Block until the triggered refresh settles."`
			Body rangeBody
		}) (*dashboardOutput, error) {
			fut, err := svc.Select(time.UnixMilli(input.Body.From), time.UnixMilli(input.Body.To))
			if err != nil {
				return nil, mapErr(err)
			}
			status, err := await(ctx, fut, input.Wait)
			if err != nil {
				return nil, err
			}
			return dashboardResponse(svc, status), nil
		})

	type tooltipOutput struct {
		Body controller.Tooltip
	}

	huma.Register(api, huma.Operation{OperationID: "chart-tooltip", Method: http.MethodGet, Path: "/api/v1/chart/tooltip", Summary: "Stacked values at a data point", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct {
			Index     int `query:"index" minimum:"0" doc:"Data point index"`
			Highlight int `query:"highlight" default:"-1" doc:"Series index to highlight"`
		}) (*tooltipOutput, error) {
			tip, err := svc.Tooltip(input.Index, input.Highlight)
			if err != nil {
				return nil, mapErr(err)
			}
			return &tooltipOutput{Body: tip}, nil
		})

	type detailQueryOutput struct {
		Body struct {
			Query   aggregate.ChartQuery `json:"query"`
			Encoded string               `json:"encoded"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "aggregate-detail-query", Method: http.MethodGet, Path: "/api/v1/aggregate/detail-query", Summary: "Query the aggregate detail view opens with", Tags: []string{"Chart"}},
		func(ctx context.Context, input *struct{}) (*detailQueryOutput, error) {
			q := svc.AggregateDetailQuery()
			out := &detailQueryOutput{}
			out.Body.Query = q
			out.Body.Encoded = q.Values().Encode()
			return out, nil
		})
}
