package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/dgnsrekt/perf_console/internal/views"
)

func registerViewHandlers(api huma.API, svc Service, store ViewStore) {
	type viewOutput struct {
		Body views.View
	}

	type listViewsOutput struct {
		Body struct {
			Views []views.View `json:"views"`
		}
	}

	type viewIDInput struct {
		ID string `path:"id"`
	}

	huma.Register(api, huma.Operation{OperationID: "list-views", Method: http.MethodGet, Path: "/api/v1/views", Summary: "List saved views", Tags: []string{"Views"}},
		func(ctx context.Context, input *struct{}) (*listViewsOutput, error) {
			list, err := store.List()
			if err != nil {
				return nil, mapErr(err)
			}
			out := &listViewsOutput{}
			out.Body.Views = list
			return out, nil
		})

	huma.Register(api, huma.Operation{OperationID: "save-view", Method: http.MethodPost, Path: "/api/v1/views", Summary: "Save a view (defaults to the current location)", Tags: []string{"Views"}},
		func(ctx context.Context, input *struct {
			Body struct {
				Name     string `json:"name" required:"true" doc:"Display name"`
				Location string `json:"location,omitempty" doc:"Location query; omit to save the current filter"`
				Notes    string `json:"notes,omitempty"`
			}
		}) (*viewOutput, error) {
			location := input.Body.Location
			if location == "" {
				location = svc.Location()
			}
			v, err := store.Save(input.Body.Name, location, input.Body.Notes)
			if err != nil {
				return nil, mapErr(err)
			}
			return &viewOutput{Body: v}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "get-view", Method: http.MethodGet, Path: "/api/v1/views/{id}", Summary: "Get a saved view", Tags: []string{"Views"}},
		func(ctx context.Context, input *viewIDInput) (*viewOutput, error) {
			v, err := store.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			return &viewOutput{Body: v}, nil
		})

	huma.Register(api, huma.Operation{OperationID: "delete-view", Method: http.MethodDelete, Path: "/api/v1/views/{id}", Summary: "Delete a saved view", Tags: []string{"Views"}},
		func(ctx context.Context, input *viewIDInput) (*struct{}, error) {
			if err := store.Delete(input.ID); err != nil {
				return nil, mapErr(err)
			}
			return nil, nil
		})

	huma.Register(api, huma.Operation{OperationID: "apply-view", Method: http.MethodPost, Path: "/api/v1/views/{id}/apply", Summary: "Load a saved view into the dashboard", Tags: []string{"Views"}},
		func(ctx context.Context, input *struct {
			ID   string `path:"id"`
			Wait bool   `query:"wait" default:"true" doc:"Block until the triggered refresh settles."`
		}) (*dashboardOutput, error) {
			v, err := store.Get(input.ID)
			if err != nil {
				return nil, mapErr(err)
			}
			fut, err := svc.ApplyLocation(v.Location)
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
