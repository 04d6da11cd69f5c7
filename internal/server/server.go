package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"tableside/internal/domain"
	"tableside/internal/engine"
	"tableside/internal/render"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   *engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_state"`
	Message string         `json:"message" example:"table 3 is empty, not taken"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the required error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Tableside API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the error envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// Schema/request validation errors should be 400 bad_request
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Tableside API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerTables(group, cfg.Engine)
	registerOrders(group, cfg.Engine)
	registerViews(group, cfg.Engine)
	registerHistory(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	case errors.Is(err, domain.ErrConflict):
		return newAPIError(http.StatusConflict, "conflict", err.Error(), nil)
	case errors.Is(err, domain.ErrTableState):
		return newAPIError(http.StatusConflict, "invalid_state", err.Error(), nil)
	case errors.Is(err, domain.ErrCapacity):
		return newAPIError(http.StatusUnprocessableEntity, "capacity_exceeded", err.Error(), nil)
	case errors.Is(err, domain.ErrUnknownDish):
		return newAPIError(http.StatusUnprocessableEntity, "unknown_dish", err.Error(), nil)
	case errors.Is(err, domain.ErrInvalidTransition):
		return newAPIError(http.StatusUnprocessableEntity, "invalid_transition", err.Error(), nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerTables(api huma.API, e *engine.Engine) {
	type tablePath struct {
		ID int `path:"id" minimum:"1"`
	}

	huma.Register(api, huma.Operation{
		OperationID: "list-tables",
		Method:      http.MethodGet,
		Path:        "/tables",
		Summary:     "List tables",
	}, func(ctx context.Context, input *struct {
		Free bool `query:"free"`
	}) (*struct {
		Body []TableResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter, RoleKitchen); err != nil {
			return nil, err
		}
		var (
			tables []domain.Table
			err    error
		)
		if input.Free {
			tables, err = e.FreeTables(ctx)
		} else {
			tables, err = e.Tables(ctx)
		}
		if err != nil {
			return nil, handleError(err)
		}
		now := e.Now()
		window := e.Config.Window()
		res := make([]TableResponse, 0, len(tables))
		for _, t := range tables {
			res = append(res, tableResponse(t, t.ReservationImminent(now, window)))
		}
		return &struct {
			Body []TableResponse `json:"body"`
		}{Body: res}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-table",
		Method:      http.MethodGet,
		Path:        "/tables/{id}",
		Summary:     "Get table",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *tablePath) (*struct {
		Body TableResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter, RoleKitchen); err != nil {
			return nil, err
		}
		t, err := e.Lookup(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TableResponse `json:"body"`
		}{Body: tableResponse(t, t.ReservationImminent(e.Now(), e.Config.Window()))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "seat-table",
		Method:      http.MethodPost,
		Path:        "/tables/{id}/seat",
		Summary:     "Seat a party",
		Errors: []int{
			http.StatusConflict,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   int         `path:"id" minimum:"1"`
		Body SeatRequest `json:"body"`
	}) (*struct {
		Body TableResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter); err != nil {
			return nil, err
		}
		t, err := e.Seat(ctx, input.ID, input.Body.Guests)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TableResponse `json:"body"`
		}{Body: tableResponse(t, false)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "clear-table",
		Method:      http.MethodPost,
		Path:        "/tables/{id}/clear",
		Summary:     "Clear a table",
		Errors: []int{
			http.StatusConflict,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *tablePath) (*struct {
		Body TableResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter); err != nil {
			return nil, err
		}
		t, err := e.Clear(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TableResponse `json:"body"`
		}{Body: tableResponse(t, false)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reserve-table",
		Method:      http.MethodPost,
		Path:        "/tables/{id}/reserve",
		Summary:     "Reserve a table",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusConflict,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   int            `path:"id" minimum:"1"`
		Body ReserveRequest `json:"body"`
	}) (*struct {
		Body TableResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter); err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339, input.Body.At)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "at must be RFC3339", map[string]any{"at": input.Body.At})
		}
		t, err := e.Reserve(ctx, input.ID, at)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TableResponse `json:"body"`
		}{Body: tableResponse(t, t.ReservationImminent(e.Now(), e.Config.Window()))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-reservation",
		Method:      http.MethodDelete,
		Path:        "/tables/{id}/reservation",
		Summary:     "Cancel a reservation",
		Errors: []int{
			http.StatusConflict,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *tablePath) (*struct {
		Body TableResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter); err != nil {
			return nil, err
		}
		t, err := e.CancelReservation(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body TableResponse `json:"body"`
		}{Body: tableResponse(t, false)}, nil
	})
}

func registerOrders(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "place-order",
		Method:        http.MethodPost,
		Path:          "/tables/{id}/order",
		Summary:       "Place an order",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusConflict,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   int               `path:"id" minimum:"1"`
		Body PlaceOrderRequest `json:"body"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter); err != nil {
			return nil, err
		}
		o, err := e.PlaceOrder(ctx, input.ID, input.Body.Dishes)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-table-order",
		Method:      http.MethodGet,
		Path:        "/tables/{id}/order",
		Summary:     "Get a table's open order",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int `path:"id" minimum:"1"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter, RoleKitchen); err != nil {
			return nil, err
		}
		o, err := e.OrderForTable(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-dishes",
		Method:      http.MethodPost,
		Path:        "/tables/{id}/order/dishes",
		Summary:     "Append dishes to the open order",
		Errors: []int{
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		ID   int              `path:"id" minimum:"1"`
		Body AddDishesRequest `json:"body"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter); err != nil {
			return nil, err
		}
		o, err := e.AddDishes(ctx, input.ID, input.Body.Dishes)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "close-order",
		Method:      http.MethodPost,
		Path:        "/tables/{id}/order/close",
		Summary:     "Close and archive the order",
		Errors: []int{
			http.StatusConflict,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID int `path:"id" minimum:"1"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter); err != nil {
			return nil, err
		}
		o, err := e.CloseOrder(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-orders",
		Method:      http.MethodGet,
		Path:        "/orders",
		Summary:     "List open orders",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status"`
	}) (*struct {
		Body []OrderResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter, RoleKitchen); err != nil {
			return nil, err
		}
		orders, err := e.OpenOrders(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if input.Status != "" {
			status, perr := domain.ParseDishStatus(input.Status)
			if perr != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", perr.Error(), nil)
			}
			orders = render.FilterByDishStatus(orders, status)
		}
		return &struct {
			Body []OrderResponse `json:"body"`
		}{Body: mapOrders(orders)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-dish-status",
		Method:      http.MethodPatch,
		Path:        "/orders/{order_id}/lines/{index}",
		Summary:     "Update a dish line status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		OrderID int64             `path:"order_id" minimum:"1"`
		Index   int               `path:"index" minimum:"0"`
		Body    UpdateLineRequest `json:"body"`
	}) (*struct {
		Body OrderResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleKitchen); err != nil {
			return nil, err
		}
		status, perr := domain.ParseDishStatus(input.Body.Status)
		if perr != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", perr.Error(), nil)
		}
		o, err := e.UpdateDishStatus(ctx, input.OrderID, input.Index, status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderResponse `json:"body"`
		}{Body: orderResponse(o)}, nil
	})
}

func registerViews(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "layout",
		Method:      http.MethodGet,
		Path:        "/layout",
		Summary:     "Waiter floor grid",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body LayoutResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter, RoleKitchen); err != nil {
			return nil, err
		}
		tables, err := e.Tables(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		now := e.Now()
		window := e.Config.Window()
		cells := make([]LayoutCell, 0, len(tables))
		for _, t := range tables {
			cells = append(cells, LayoutCell{TableID: t.ID, Marker: render.CellMarker(t, now, window)})
		}
		return &struct {
			Body LayoutResponse `json:"body"`
		}{Body: LayoutResponse{
			Columns: e.Config.Floor.Columns,
			Cells:   cells,
			Text:    render.LayoutGrid(tables, e.Config.Floor.Columns, now, window),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "menu",
		Method:      http.MethodGet,
		Path:        "/menu",
		Summary:     "Menu catalog",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []MenuItemResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter, RoleKitchen); err != nil {
			return nil, err
		}
		return &struct {
			Body []MenuItemResponse `json:"body"`
		}{Body: menuResponse(e.Menu)}, nil
	})
}

func registerHistory(api huma.API, e *engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "history",
		Method:      http.MethodGet,
		Path:        "/history",
		Summary:     "Archived orders, newest first",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit" default:"20" minimum:"1" maximum:"500"`
	}) (*struct {
		Body []HistoryRecordResponse `json:"body"`
	}, error) {
		if err := requireRole(ctx, RoleWaiter, RoleKitchen); err != nil {
			return nil, err
		}
		recs, err := e.HistoryTail(ctx, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		res := make([]HistoryRecordResponse, 0, len(recs))
		for _, rec := range recs {
			res = append(res, historyResponse(rec))
		}
		return &struct {
			Body []HistoryRecordResponse `json:"body"`
		}{Body: res}, nil
	})
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	healthPath := path.Join(basePath, "health")
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if route == healthPath {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Tableside API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}
