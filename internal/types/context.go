package types

import "context"

type ContextKey string

const (
	CtxRequestID ContextKey = "ctx_request_id"
	CtxUserID    ContextKey = "ctx_user_id"
	CtxUserEmail ContextKey = "ctx_user_email"
)

// GetRequestID returns the request ID from the context, if any.
func GetRequestID(ctx context.Context) string {
	return getString(ctx, CtxRequestID)
}

// GetUserID returns the authenticated internal user ID from the context.
func GetUserID(ctx context.Context) string {
	return getString(ctx, CtxUserID)
}

// GetUserEmail returns the authenticated user's email from the context.
func GetUserEmail(ctx context.Context) string {
	return getString(ctx, CtxUserEmail)
}

func getString(ctx context.Context, key ContextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
