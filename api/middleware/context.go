package middleware

import (
	"context"

	"github.com/angelmondragon/assetcart/pkg/types"
)

type contextKey string

const (
	ctxSessionID contextKey = "session_id"
	ctxIdentity  contextKey = "identity"
)

// SessionIDFromContext returns the shopper session id set by ShopperSession.
func SessionIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSessionID).(string); ok {
		return v
	}
	return ""
}

// IdentityFromContext returns the verified identity, or the zero value when
// the request carried none.
func IdentityFromContext(ctx context.Context) types.Identity {
	if ctx == nil {
		return types.Identity{}
	}
	if v, ok := ctx.Value(ctxIdentity).(types.Identity); ok {
		return v
	}
	return types.Identity{}
}

func WithSessionID(ctx context.Context, sessionID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxSessionID, sessionID)
}

func WithIdentity(ctx context.Context, identity types.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}
