package gateway

import (
	"net/http"

	httpresp "github.com/sdmg-platform/gateway/internal/delivery/http"
	"github.com/sdmg-platform/gateway/internal/domain"
	"github.com/sdmg-platform/gateway/internal/proxy"
	"github.com/sdmg-platform/gateway/internal/requestlog"
)

// Agent implements the /gw/agent/* route: the companion agent key is a
// static shared secret, not an OAuth2 bearer, so there is no
// acquire/invalidate cycle and no 401 retry.
func (h *Handler) Agent(w http.ResponseWriter, r *http.Request) {
	auth := authFromContext(r)
	conn := auth.Connection

	if !conn.HasAgent() {
		httpresp.WriteAppError(w, domain.ClientInputErr("AGENT_NOT_CONFIGURED"))
		return
	}

	agentKey, err := h.vault.Decrypt(*conn.AgentAPIKeyEnc)
	if err != nil {
		httpresp.WriteAppError(w, domain.InternalErr(err))
		return
	}

	logCap := requestlog.Start(auth.Token.ID, conn.ID, domain.DirectionOutbound, domain.TargetAgent, r)
	target := conn.AgentBaseURL() + stripPrefix(r.URL.Path, "/gw/agent")
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	overrides := http.Header{"x-api-key": []string{agentKey}}
	result := h.proxy.Proxy(r.Context(), w, r, target, overrides, proxy.DefaultTimeout, nil)

	h.requestlog.Finish(logCap, result.StatusCode, result.ResponseSizeBytes, result.ErrorMessage)
}
