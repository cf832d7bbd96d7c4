package handler

import (
	"net/http"

	"aircall-sync/internal/credential"
	"aircall-sync/internal/http/httperr"
	"aircall-sync/internal/observability/logger"

	"go.uber.org/zap"
)

// CredentialInspector exposes the state of one credential cache.
type CredentialInspector interface {
	Status() credential.Status
}

// DebugHandler provides development-only endpoints.
type DebugHandler struct {
	appEnv string
	caches []CredentialInspector
}

func NewDebugHandler(appEnv string, caches []CredentialInspector) *DebugHandler {
	if appEnv == "" {
		appEnv = "production"
	}
	return &DebugHandler{appEnv: appEnv, caches: caches}
}

func (h *DebugHandler) enabled() bool {
	return h.appEnv == "dev" || h.appEnv == "development"
}

// DebugCredentialsResponse lists credential cache states. Tokens are never included.
type DebugCredentialsResponse struct {
	OK   bool                `json:"ok"`
	Data []credential.Status `json:"data"`
}

// GetCredentials handles GET /debug/credentials. Only available when APP_ENV=dev.
func (h *DebugHandler) GetCredentials(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !h.enabled() {
		logger.GetLogger(ctx).Warn(ctx, "debug endpoint accessed in non-dev environment",
			logger.Module("debug"),
			logger.Action("credentials"),
			zap.String("app_env", h.appEnv),
		)
		http.NotFound(w, r)
		return
	}

	data := make([]credential.Status, 0, len(h.caches))
	for _, c := range h.caches {
		data = append(data, c.Status())
	}
	httperr.WriteJSON(w, http.StatusOK, DebugCredentialsResponse{OK: true, Data: data})
}
