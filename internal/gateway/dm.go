package gateway

import (
	"bytes"
	"io"
	"net/http"

	"github.com/google/uuid"

	httpresp "github.com/sdmg-platform/gateway/internal/delivery/http"
	"github.com/sdmg-platform/gateway/internal/domain"
	"github.com/sdmg-platform/gateway/internal/proxy"
	"github.com/sdmg-platform/gateway/internal/requestlog"
)

// DM implements the /gw/dm/* route: stream the request through to the
// connection's SAP base URL with a bearer acquired from the OAuth2
// token cache, retrying exactly once on a 401 that hasn't already
// started writing a response.
//
// The request body is buffered up front so the retry can replay it:
// the proxy's io.Copy streaming is what keeps the *response* off the
// heap, but a retryable request needs its body more than once, which
// an already-drained stream can't give back.
func (h *Handler) DM(w http.ResponseWriter, r *http.Request) {
	auth := authFromContext(r)
	conn := auth.Connection

	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		httpresp.WriteAppError(w, domain.InternalErr(err))
		return
	}

	logCap := requestlog.Start(auth.Token.ID, conn.ID, domain.DirectionOutbound, domain.TargetSapDM, r)
	target := conn.BaseURL() + stripPrefix(r.URL.Path, "/gw/dm")
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	hw := proxy.NewHeadersSentWriter(w)
	retryOn401 := func(statusCode int) bool { return statusCode == http.StatusUnauthorized }
	result := h.dmAttempt(r, hw, conn.ID, bodyBytes, target, retryOn401)

	if result.StatusCode == http.StatusUnauthorized && !hw.HeadersSent() {
		h.tokens.Invalidate(conn.ID)
		result = h.dmAttempt(r, hw, conn.ID, bodyBytes, target, nil)
	}

	h.requestlog.Finish(logCap, result.StatusCode, result.ResponseSizeBytes, result.ErrorMessage)
}

func (h *Handler) dmAttempt(r *http.Request, w *proxy.HeadersSentWriter, connectionID uuid.UUID, body []byte, target string, retryGate func(int) bool) proxy.Result {
	r.Body = io.NopCloser(bytes.NewReader(body))
	bearer, err := h.tokens.GetToken(r.Context(), connectionID)
	if err != nil {
		http.Error(w, "failed to acquire upstream token", http.StatusBadGateway)
		return proxy.Result{StatusCode: http.StatusBadGateway, ErrorMessage: err.Error()}
	}
	overrides := http.Header{"Authorization": []string{"Bearer " + bearer}}
	return h.proxy.Proxy(r.Context(), w, r, target, overrides, proxy.DefaultTimeout, retryGate)
}
