package utils

import (
	"context"
	"time"
)

type contextKey string

// Request-scoped context keys set by handlers
const (
	RequestIDKey contextKey = "request_id"
	UserAgentKey contextKey = "user_agent"
	IPAddressKey contextKey = "ip_address"
	EndpointKey  contextKey = "endpoint"
	TimeoutKey   contextKey = "timeout"
)

// RequestTimeout is the default deadline of an API request
const RequestTimeout = 30 * time.Second

// Pagination limits for admin listings
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// RequestIDFrom returns the request id stored on ctx, if any
func RequestIDFrom(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}
