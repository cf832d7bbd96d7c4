package middleware

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"aircall-sync/internal/http/httperr"
	"aircall-sync/internal/observability/logger"

	"go.uber.org/zap"
)

// WebhookTokenHeader carries the shared webhook token when the sender cannot
// put it in the payload.
const WebhookTokenHeader = "X-Aircall-Token"

// MaxWebhookBytes bounds the webhook body read by the token check and the handler.
const MaxWebhookBytes = 1 << 20

// WebhookTokenMiddleware rejects webhooks whose token does not match expected.
// The token is read from X-Aircall-Token or, failing that, from the payload
// "token" field. An empty expected token disables the check.
func WebhookTokenMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			token := r.Header.Get(WebhookTokenHeader)
			if token == "" {
				body, err := io.ReadAll(io.LimitReader(r.Body, MaxWebhookBytes+1))
				if err != nil {
					httperr.BadRequest400(w, ctx, httperr.ErrCodeInvalidFormat, "unable to read request body")
					return
				}
				if len(body) > MaxWebhookBytes {
					httperr.WriteError(w, ctx, http.StatusRequestEntityTooLarge, httperr.ErrCodeInvalidFormat, "payload exceeds "+strconv.Itoa(MaxWebhookBytes)+" bytes")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
				token = payloadToken(body)
			}

			if token == "" {
				log.Warn(ctx, "webhook rejected",
					logger.Module("http"),
					logger.Action("webhook_auth"),
					zap.String("reason", "missing_token"),
					zap.String("remote_addr", sanitizeRemoteAddr(r.RemoteAddr)),
				)
				httperr.Unauthorized401(w, ctx, httperr.ErrCodeMissingToken, "missing webhook token")
				return
			}

			if !equalTokens(token, expected) {
				log.Warn(ctx, "webhook rejected",
					logger.Module("http"),
					logger.Action("webhook_auth"),
					zap.String("reason", "invalid_token"),
					zap.String("remote_addr", sanitizeRemoteAddr(r.RemoteAddr)),
				)
				httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "invalid webhook token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// MetricsTokenMiddleware protects /metrics with X-Metrics-Token or a Bearer
// token. An empty expected token leaves the endpoint open.
func MetricsTokenMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if expected == "" {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Metrics-Token")
			if token == "" {
				if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
					token = strings.TrimPrefix(auth, "Bearer ")
				}
			}

			if token == "" || !equalTokens(token, expected) {
				httperr.Unauthorized401(w, r.Context(), httperr.ErrCodeInvalidToken, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func payloadToken(body []byte) string {
	var envelope struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Token
}

func equalTokens(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
