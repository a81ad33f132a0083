package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func registerSummaryHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "sort-summaries", Method: http.MethodPost, Path: "/api/v1/summaries/sort", Summary: "Toggle the summary sort on an attribute", Tags: []string{"Summaries"}},
		func(ctx context.Context, input *struct {
			Wait bool `query:"wait" default:"true" doc:"Block until the summary refresh settles."`
			Body struct {
				Attribute string `json:"attribute" required:"true" doc:"Sort attribute, e.g. total or count"`
			}
		}) (*dashboardOutput, error) {
			fut, err := svc.Sort(input.Body.Attribute)
			if err != nil {
				return nil, mapErr(err)
			}
			status, err := await(ctx, fut, input.Wait)
			if err != nil {
				return nil, err
			}
			return dashboardResponse(svc, status), nil
		})

	huma.Register(api, huma.Operation{OperationID: "more-summaries", Method: http.MethodPost, Path: "/api/v1/summaries/more", Summary: "Double the number of summary rows", Tags: []string{"Summaries"}},
		func(ctx context.Context, input *waitInput) (*dashboardOutput, error) {
			status, err := await(ctx, svc.ShowMore(), input.Wait)
			if err != nil {
				return nil, err
			}
			return dashboardResponse(svc, status), nil
		})

	type barWidthOutput struct {
		Body struct {
			Width string `json:"width"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "summary-bar-width", Method: http.MethodGet, Path: "/api/v1/summaries/bar-width", Summary: "Bar width for a row total relative to the largest row", Tags: []string{"Summaries"}},
		func(ctx context.Context, input *struct {
			TotalMicros int64 `query:"total" minimum:"0" doc:"Row total in microseconds"`
		}) (*barWidthOutput, error) {
			out := &barWidthOutput{}
			out.Body.Width = svc.BarWidth(input.TotalMicros)
			return out, nil
		})

	type sortIndicatorOutput struct {
		Body struct {
			Direction string `json:"direction" doc:"asc, desc or empty when the column is not sorted"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "summary-sort-indicator", Method: http.MethodGet, Path: "/api/v1/summaries/sort-indicator", Summary: "How a column header should mark its sort", Tags: []string{"Summaries"}},
		func(ctx context.Context, input *struct {
			Attribute string `query:"attribute" required:"true"`
		}) (*sortIndicatorOutput, error) {
			out := &sortIndicatorOutput{}
			out.Body.Direction = svc.SortIndicator(input.Attribute)
			return out, nil
		})
}
