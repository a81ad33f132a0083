package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func registerHealthHandlers(api huma.API, svc Service) {
	type healthOutput struct {
		Body struct {
			Status   string `json:"status"`
			Location string `json:"location"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "healthz", Method: http.MethodGet, Path: "/healthz", Summary: "Liveness check", Tags: []string{"Health"}},
		func(ctx context.Context, input *struct{}) (*healthOutput, error) {
			out := &healthOutput{}
			out.Body.Status = "ok"
			out.Body.Location = svc.Location()
			return out, nil
		})
}

func registerDashboardHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "get-dashboard", Method: http.MethodGet, Path: "/api/v1/dashboard", Summary: "Current filter, chart and summary state", Tags: []string{"Dashboard"}},
		func(ctx context.Context, input *struct{}) (*dashboardOutput, error) {
			return dashboardResponse(svc, statusApplied), nil
		})

	huma.Register(api, huma.Operation{OperationID: "refresh-dashboard", Method: http.MethodPost, Path: "/api/v1/dashboard/refresh", Summary: "Reload chart and summaries (refresh button)", Tags: []string{"Dashboard"}},
		func(ctx context.Context, input *waitInput) (*dashboardOutput, error) {
			status, err := await(ctx, svc.Refresh(), input.Wait)
			if err != nil {
				return nil, err
			}
			return dashboardResponse(svc, status), nil
		})

	huma.Register(api, huma.Operation{OperationID: "apply-location", Method: http.MethodPut, Path: "/api/v1/dashboard/location", Summary: "Replace the filter with an encoded location query", Tags: []string{"Dashboard"}},
		func(ctx context.Context, input *struct {
			Wait bool `query:"wait" default:"true" doc:"Block until the triggered refresh settles."`
			Body struct {
				Query string `json:"query" doc:"Location query, with or without the leading '?'"`
			}
		}) (*dashboardOutput, error) {
			fut, err := svc.ApplyLocation(input.Body.Query)
			if err != nil {
				return nil, mapErr(err)
			}
			status, err := await(ctx, fut, input.Wait)
			if err != nil {
				return nil, err
			}
			return dashboardResponse(svc, status), nil
		})
}
