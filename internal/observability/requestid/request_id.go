package requestid

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type contextKey string

const requestIDContextKey contextKey = "request_id"

// Header is the correlation header read from inbound webhooks and
// propagated to outbound backend calls.
const Header = "X-Request-Id"

// NewRequestID generates a time-ordered request ID.
// Format: req_<unix millis>_<20 hex chars>
func NewRequestID() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("req_%d_%s", time.Now().UnixMilli(), random[:20])
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// SetRequestID stores request ID in context
func SetRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}
