package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"signflow/internal/engine"
	"signflow/internal/engine/auth"
	"signflow/internal/engine/values"
	"signflow/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Logger   *zap.Logger
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"required_field"`
	Message string         `json:"message" example:"required field 5b1c is blank"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true" example:"{\"field_uuid\":\"5b1c\"}"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the signing form API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	if strings.TrimSpace(cfg.Auth.Secret) == "" {
		return nil, auth.ErrSecretMissing
	}
	if cfg.Auth.Logger == nil {
		cfg.Auth.Logger = cfg.Logger
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// request schema failures are the caller's bad request, not a form validation
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth))
	hcfg := huma.DefaultConfig("Signflow API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerSubmitters(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
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
	var fe auth.ForbiddenError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"submitter_id": fe.SubmitterID})
	}
	var rf *engine.RequiredFieldError
	if errors.As(err, &rf) {
		return newAPIError(http.StatusUnprocessableEntity, "required_field", err.Error(), map[string]any{"field_uuid": rf.FieldUUID})
	}
	msg := err.Error()
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case errors.Is(err, engine.ErrAlreadyCompleted):
		return newAPIError(http.StatusConflict, "already_completed", msg, nil)
	case errors.Is(err, engine.ErrDeclined):
		return newAPIError(http.StatusConflict, "declined", msg, nil)
	case errors.Is(err, engine.ErrSubmissionClosed):
		return newAPIError(http.StatusGone, "submission_closed", msg, nil)
	case errors.Is(err, engine.ErrInviteRefused):
		return newAPIError(http.StatusUnprocessableEntity, "invite_refused", msg, nil)
	case errors.Is(err, engine.ErrInviteIncomplete):
		return newAPIError(http.StatusUnprocessableEntity, "invite_incomplete", msg, nil)
	case errors.Is(err, engine.ErrFormulaInfiniteLoop):
		return newAPIError(http.StatusUnprocessableEntity, "formula_infinite_loop", msg, nil)
	}
	var ve *engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", msg, nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
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
			ensureDefaultErrorResponses(oas)
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func ensureDefaultErrorResponses(oas *huma.OpenAPI) {
	if oas == nil || oas.Paths == nil {
		return
	}
	for _, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if op.Responses == nil {
				op.Responses = map[string]*huma.Response{}
			}
			op.Responses["default"] = &huma.Response{
				Description: "Error",
				Content: map[string]*huma.MediaType{
					"application/json": {
						Schema: &huma.Schema{Ref: "#/components/schemas/ApiError"},
					},
				},
			}
		}
	}
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
	oas.Components.SecuritySchemes["formToken"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	security := []map[string][]string{{"formToken": {}}}
	oas.Security = security
	healthPath := path.Join("/", basePath, "health")
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
    <title>Signflow API Docs</title>
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
      Authenticate with Authorization: Bearer &lt;form token&gt;.
    </p>
  </body>
</html>`, specURL)
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

type submitterPath struct {
	SubmitterID string `path:"submitter_id"`
}

func registerSubmitters(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-submitter",
		Method:      http.MethodGet,
		Path:        "/submitters/{submitter_id}",
		Summary:     "Get a party with its values",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *submitterPath) (*struct {
		Body SubmitterResponse `json:"body"`
	}, error) {
		sub, err := e.GetSubmitter(ctx, input.SubmitterID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SubmitterResponse `json:"body"`
		}{Body: submitterResponse(sub)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-values",
		Method:      http.MethodPost,
		Path:        "/submitters/{submitter_id}/values",
		Summary:     "Save form values and optionally complete the form",
		Errors: []int{
			http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
			http.StatusNotFound, http.StatusConflict, http.StatusGone, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		SubmitterID string `path:"submitter_id"`
		Body        SubmitValuesRequest
	}) (*struct {
		Body SubmitterResponse `json:"body"`
	}, error) {
		in := engine.SubmitInput{
			Values: input.Body.Values,
			CastFlags: values.CastFlags{
				Boolean: input.Body.CastBoolean,
				Number:  input.Body.CastNumber,
				Phone:   input.Body.NormalizePhone,
			},
			Completed:  input.Body.Completed,
			WithReason: input.Body.WithReason,
		}
		rc := requestContext(ctx)
		if input.Body.Timezone != "" {
			rc.Timezone = input.Body.Timezone
		}
		sub, err := e.Submit(ctx, input.SubmitterID, in, rc, true)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SubmitterResponse `json:"body"`
		}{Body: submitterResponse(sub)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "invite-parties",
		Method:      http.MethodPost,
		Path:        "/submitters/{submitter_id}/invite",
		Summary:     "Invite the parties this party is responsible for",
		Errors: []int{
			http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
			http.StatusNotFound, http.StatusUnprocessableEntity,
		},
	}, func(ctx context.Context, input *struct {
		SubmitterID string `path:"submitter_id"`
		Body        InviteRequest
	}) (*struct {
		Body InviteResponse `json:"body"`
	}, error) {
		parties := make([]engine.InviteParty, 0, len(input.Body.Submitters))
		for _, p := range input.Body.Submitters {
			parties = append(parties, engine.InviteParty{UUID: p.UUID, Email: strings.TrimSpace(p.Email)})
		}
		res, err := e.Invite(ctx, input.SubmitterID, parties, requestContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InviteResponse `json:"body"`
		}{Body: inviteResponse(res)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decline-form",
		Method:      http.MethodPost,
		Path:        "/submitters/{submitter_id}/decline",
		Summary:     "Decline to sign",
		Errors: []int{
			http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound,
			http.StatusConflict, http.StatusGone,
		},
	}, func(ctx context.Context, input *struct {
		SubmitterID string `path:"submitter_id"`
		Body        DeclineRequest
	}) (*struct {
		Body SubmitterResponse `json:"body"`
	}, error) {
		sub, err := e.Decline(ctx, input.SubmitterID, input.Body.Reason, requestContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SubmitterResponse `json:"body"`
		}{Body: submitterResponse(sub)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "form-configs",
		Method:      http.MethodGet,
		Path:        "/submitters/{submitter_id}/form-configs",
		Summary:     "Account toggles for the party's form",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		SubmitterID string   `path:"submitter_id"`
		ExtraKeys   []string `query:"extra_keys"`
	}) (*struct {
		Body map[string]any `json:"body"`
	}, error) {
		configs, err := e.FormConfigs(ctx, input.SubmitterID, input.ExtraKeys)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body map[string]any `json:"body"`
		}{Body: configs}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-submitter-events",
		Method:      http.MethodGet,
		Path:        "/submitters/{submitter_id}/events",
		Summary:     "List the party's tracking events, newest first",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		SubmitterID string `path:"submitter_id"`
		Type        string `query:"type"`
		Limit       int    `query:"limit" default:"50"`
		Cursor      string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.LatestEvents(ctx, repo.EventFilters{
			SubmitterID: input.SubmitterID,
			Type:        input.Type,
			Before:      cursorID,
			Limit:       limit + 1,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

// requestContext lifts the caller's address, agent and timezone off the request.
func requestContext(ctx context.Context) engine.RequestContext {
	req, ok := ctx.Value(requestKey{}).(*http.Request)
	if !ok || req == nil {
		return engine.RequestContext{}
	}
	ip := req.RemoteAddr
	if fwd := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return engine.RequestContext{
		IP:        ip,
		UserAgent: req.UserAgent(),
		Timezone:  strings.TrimSpace(req.Header.Get("X-Timezone")),
	}
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
