package service

import "context"

type contextKey string

const operatorKey contextKey = "operator"

// OperatorInfo is the authenticated identity attached to a request.
type OperatorInfo struct {
	UserID uint64
	Email  string
	Name   string
	Role   string
}

// WithOperator injects the operator info into the context.
func WithOperator(ctx context.Context, op *OperatorInfo) context.Context {
	return context.WithValue(ctx, operatorKey, op)
}

// GetOperatorInfo retrieves the operator info from the context.
func GetOperatorInfo(ctx context.Context) *OperatorInfo {
	val, ok := ctx.Value(operatorKey).(*OperatorInfo)
	if !ok {
		return nil
	}
	return val
}

// GetOperatorID returns the acting user id, or 0 for unauthenticated contexts.
func GetOperatorID(ctx context.Context) uint64 {
	op := GetOperatorInfo(ctx)
	if op == nil {
		return 0
	}
	return op.UserID
}
