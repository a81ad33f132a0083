package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/perf_console/internal/refresh"
)

func registerFilterHandlers(api huma.API, svc Service) {
	huma.Register(api, huma.Operation{OperationID: "set-transaction-type", Method: http.MethodPut, Path: "/api/v1/filter/transaction-type", Summary: "Switch transaction type (clears the selected transaction)", Tags: []string{"Filter"}},
		func(ctx context.Context, input *struct {
			Wait bool `query:"wait" default:"true" doc:"Block until the triggered refresh settles."`
			Body struct {
				TransactionType string `json:"transaction_type" required:"true" doc:"Transaction type, e.g. Web"`
			}
		}) (*dashboardOutput, error) {
			fut, err := svc.SetTransactionType(input.Body.TransactionType)
			if err != nil {
				return nil, mapErr(err)
			}
			status, err := await(ctx, fut, input.Wait)
			if err != nil {
				return nil, err
			}
			return dashboardResponse(svc, status), nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-filter-date", Method: http.MethodPut, Path: "/api/v1/filter/date", Summary: "Change the viewed day", Tags: []string{"Filter"}},
		func(ctx context.Context, input *struct {
			Wait bool `query:"wait" default:"true" doc:"Block until the triggered refresh settles."`
			Body struct {
				Date string `json:"date" required:"true" doc:"Day as YYYY-MM-DD in the dashboard timezone"`
			}
		}) (*dashboardOutput, error) {
			day, err := svc.ParseDay(input.Body.Date)
			if err != nil {
				return nil, mapErr(err)
			}
			fut, err := svc.SetFilterDate(day)
			if err != nil {
				return nil, mapErr(err)
			}
			status, err := await(ctx, fut, input.Wait)
			if err != nil {
				return nil, err
			}
			return dashboardResponse(svc, status), nil
		})

	huma.Register(api, huma.Operation{OperationID: "set-transaction-name", Method: http.MethodPut, Path: "/api/v1/filter/transaction-name", Summary: "Chart one transaction; empty returns to the whole type", Tags: []string{"Filter"}},
		func(ctx context.Context, input *struct {
			Wait bool `query:"wait" default:"true" doc:"Block until the chart refresh settles."`
			Body struct {
				TransactionName string `json:"transaction_name" doc:"Transaction name; empty clears the selection"`
			}
		}) (*dashboardOutput, error) {
			status, err := await[[]refresh.ChartSeries](ctx, svc.SelectTransaction(input.Body.TransactionName), input.Wait)
			if err != nil {
				return nil, err
			}
			return dashboardResponse(svc, status), nil
		})

	type tracesOutput struct {
		Body struct {
			Query string `json:"query"`
		}
	}

	huma.Register(api, huma.Operation{OperationID: "traces-query", Method: http.MethodGet, Path: "/api/v1/traces/query", Summary: "Trace explorer link for a transaction or the whole type", Tags: []string{"Filter"}},
		func(ctx context.Context, input *struct {
			TransactionName string `query:"transaction_name" doc:"Transaction name; omit for the whole type"`
		}) (*tracesOutput, error) {
			out := &tracesOutput{}
			out.Body.Query = svc.TracesQuery(input.TransactionName)
			return out, nil
		})
}
