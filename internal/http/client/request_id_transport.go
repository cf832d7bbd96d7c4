package client

import (
	"net/http"

	"aircall-sync/internal/observability/logger"
	"aircall-sync/internal/observability/requestid"
)

// RequestIDTransport is an http.RoundTripper that copies the request id and
// event id from the context onto outbound backend requests.
type RequestIDTransport struct {
	base http.RoundTripper
}

// EventIDHeader carries the webhook event id to the backends for manual reconciliation.
const EventIDHeader = "X-Event-Id"

// NewRequestIDTransport creates a new RequestIDTransport wrapping the base transport.
// If base is nil, defaults to http.DefaultTransport.
func NewRequestIDTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RequestIDTransport{base: base}
}

// RoundTrip sets X-Request-Id and X-Event-Id when present in the context.
// Headers already set by the caller are never overwritten.
func (t *RequestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	reqID := requestid.GetRequestID(ctx)
	eventID := logger.GetEventIDFromContext(ctx)

	setReqID := reqID != "" && req.Header.Get(requestid.Header) == ""
	setEventID := eventID != "" && req.Header.Get(EventIDHeader) == ""
	if !setReqID && !setEventID {
		return t.base.RoundTrip(req)
	}

	// Never mutate the caller's request.
	cloned := req.Clone(ctx)
	if setReqID {
		cloned.Header.Set(requestid.Header, reqID)
	}
	if setEventID {
		cloned.Header.Set(EventIDHeader, eventID)
	}

	return t.base.RoundTrip(cloned)
}
