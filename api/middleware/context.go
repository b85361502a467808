package middleware

import (
	"context"

	pkgAuth "github.com/angelmondragon/ordersync-backend/pkg/auth"
)

type contextKey string

const ctxOperator contextKey = "operator"

// OperatorFromContext returns the authenticated operator, if any.
func OperatorFromContext(ctx context.Context) (pkgAuth.Operator, bool) {
	if ctx == nil {
		return pkgAuth.Operator{}, false
	}
	op, ok := ctx.Value(ctxOperator).(pkgAuth.Operator)
	return op, ok
}

// WithOperator injects the operator into the context for downstream handlers.
func WithOperator(ctx context.Context, op pkgAuth.Operator) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxOperator, op)
}
