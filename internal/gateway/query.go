package gateway

import (
	"encoding/json"
	"net/http"

	httpresp "github.com/sdmg-platform/gateway/internal/delivery/http"
	"github.com/sdmg-platform/gateway/internal/domain"
	"github.com/sdmg-platform/gateway/internal/orchestrator"
	"github.com/sdmg-platform/gateway/internal/resolver"
)

// explicitQueryRequest is the first of the two /gw/query body shapes.
type explicitQueryRequest struct {
	Calls []explicitCall `json:"calls"`
	Mode  string         `json:"mode"`
}

type explicitCall struct {
	Slug    string            `json:"slug"`
	Params  map[string]string `json:"params"`
	Headers map[string]string `json:"headers"`
	Body    json.RawMessage   `json:"body"`
}

// autoResolveQueryRequest is the second /gw/query body shape.
type autoResolveQueryRequest struct {
	Slugs     []string              `json:"slugs"`
	Context   map[string]string     `json:"context"`
	Overrides resolver.Overrides    `json:"overrides"`
}

// Query implements the /gw/query route, dispatching on which of the
// two body shapes the request actually carries.
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httpresp.WriteAppError(w, domain.ClientInputErr("invalid request body: %v", err))
		return
	}

	if _, hasSlugs := raw["slugs"]; hasSlugs {
		h.queryAutoResolved(w, r, raw)
		return
	}
	h.queryExplicit(w, r, raw)
}

func (h *Handler) queryExplicit(w http.ResponseWriter, r *http.Request, raw map[string]json.RawMessage) {
	var req explicitQueryRequest
	if err := unmarshalRaw(raw, &req); err != nil {
		httpresp.WriteAppError(w, domain.ClientInputErr("invalid request body: %v", err))
		return
	}
	if len(req.Calls) == 0 {
		httpresp.WriteAppError(w, domain.ClientInputErr("calls must be non-empty"))
		return
	}
	if len(req.Calls) > orchestrator.MaxCallsPerBatch {
		httpresp.WriteAppError(w, domain.ClientInputErr("calls exceeds the %d call batch limit", orchestrator.MaxCallsPerBatch))
		return
	}

	calls := make([]orchestrator.CallInput, 0, len(req.Calls))
	for _, c := range req.Calls {
		if c.Slug == "" {
			httpresp.WriteAppError(w, domain.ClientInputErr("each call requires a non-empty slug"))
			return
		}
		calls = append(calls, orchestrator.CallInput{
			Slug:    c.Slug,
			Params:  c.Params,
			Headers: headersOf(c.Headers),
			Body:    []byte(c.Body),
		})
	}

	auth := authFromContext(r)
	var result orchestrator.Result
	if req.Mode == string(orchestrator.ModeSequential) {
		result = h.orchestrator.RunSequential(r.Context(), auth.Connection.TenantID, auth.Connection.ID, calls, nil)
	} else {
		result = h.orchestrator.RunParallel(r.Context(), auth.Connection.TenantID, auth.Connection.ID, calls)
	}
	httpresp.WriteSuccess(w, result, "")
}

func (h *Handler) queryAutoResolved(w http.ResponseWriter, r *http.Request, raw map[string]json.RawMessage) {
	var req autoResolveQueryRequest
	if err := unmarshalRaw(raw, &req); err != nil {
		httpresp.WriteAppError(w, domain.ClientInputErr("invalid request body: %v", err))
		return
	}
	if len(req.Slugs) == 0 {
		httpresp.WriteAppError(w, domain.ClientInputErr("slugs must be non-empty"))
		return
	}
	if len(req.Slugs) > orchestrator.MaxCallsPerBatch {
		httpresp.WriteAppError(w, domain.ClientInputErr("slugs exceeds the %d call batch limit", orchestrator.MaxCallsPerBatch))
		return
	}

	auth := authFromContext(r)
	defs, err := h.definitions.GetBySlugs(auth.Connection.TenantID, req.Slugs)
	if err != nil {
		httpresp.WriteAppError(w, domain.InternalErr(err))
		return
	}

	plan := resolver.Resolve(defs, req.Slugs, req.Context, req.Overrides)

	calls := make([]orchestrator.CallInput, 0, len(plan.Calls))
	for _, c := range plan.Calls {
		calls = append(calls, orchestrator.CallInput{Slug: c.Slug, Params: c.Params})
	}

	result := h.orchestrator.RunSequential(r.Context(), auth.Connection.TenantID, auth.Connection.ID, calls, plan.DependencyEdges)
	httpresp.WriteSuccess(w, map[string]any{
		"totalDurationMs":  result.TotalDurationMs,
		"mode":             result.Mode,
		"layers":           result.Layers,
		"results":          result.Results,
		"warnings":         plan.Warnings,
		"unresolvedParams": plan.UnresolvedParams,
	}, "")
}

func unmarshalRaw(raw map[string]json.RawMessage, out any) error {
	full, err := json.Marshal(raw)
	if err != nil {
		return err
	}
	return json.Unmarshal(full, out)
}

func headersOf(m map[string]string) http.Header {
	if len(m) == 0 {
		return nil
	}
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	return h
}
