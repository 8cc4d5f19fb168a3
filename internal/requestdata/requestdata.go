package requestdata

import (
	"context"
)

type ctxKey struct{}

// RequestData carries the authenticated caller's identity through the
// request context after the auth middleware has verified the token.
type RequestData struct {
	UserID   uint
	Email    string
	Username string
	Role     string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, ctxKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if rd, ok := ctx.Value(ctxKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}
