package gateway

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	httpresp "github.com/sdmg-platform/gateway/internal/delivery/http"
	"github.com/sdmg-platform/gateway/internal/domain"
	"github.com/sdmg-platform/gateway/internal/orchestrator"
)

type useCaseRequest struct {
	Context map[string]string `json:"context"`
}

// UseCase implements the POST /gw/use-case/<slug> route: resolve a
// saved template against the caller's context, then run it through the
// orchestrator exactly like an explicit /gw/query call.
func (h *Handler) UseCase(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	auth := authFromContext(r)

	tmpl, err := h.useCases.GetBySlug(auth.Connection.TenantID, slug)
	if err != nil {
		httpresp.WriteAppError(w, domain.InternalErr(err))
		return
	}
	if tmpl == nil {
		httpresp.WriteAppError(w, domain.NotFoundErr("use case template not found: %s", slug))
		return
	}

	var req useCaseRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
			httpresp.WriteAppError(w, domain.ClientInputErr("invalid request body: %v", err))
			return
		}
	}

	if missing := tmpl.MissingContextKeys(req.Context); len(missing) > 0 {
		httpresp.WriteAppError(w, domain.ClientInputErr("missing required context: %s", strings.Join(missing, ", ")))
		return
	}

	calls := make([]orchestrator.CallInput, 0, len(tmpl.Calls))
	for _, c := range tmpl.Calls {
		calls = append(calls, orchestrator.CallInput{Slug: c.Slug, Params: substituteContext(c.Params, req.Context)})
	}

	var result orchestrator.Result
	if tmpl.Mode == string(orchestrator.ModeSequential) {
		result = h.orchestrator.RunSequential(r.Context(), auth.Connection.TenantID, auth.Connection.ID, calls, nil)
	} else {
		result = h.orchestrator.RunParallel(r.Context(), auth.Connection.TenantID, auth.Connection.ID, calls)
	}
	httpresp.WriteSuccess(w, result, "")
}

// substituteContext resolves "{{key}}" placeholders in a template call's
// static params against the caller-supplied context.
func substituteContext(params map[string]string, ctx map[string]string) map[string]string {
	if len(params) == 0 {
		return nil
	}
	out := make(map[string]string, len(params))
	for k, v := range params {
		out[k] = replacePlaceholders(v, ctx)
	}
	return out
}

func replacePlaceholders(value string, ctx map[string]string) string {
	for key, v := range ctx {
		value = strings.ReplaceAll(value, "{{"+key+"}}", v)
	}
	return value
}
