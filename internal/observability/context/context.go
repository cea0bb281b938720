package context

import (
	"context"
	"strings"
)

type ctxKey string

const (
	requestIDKey ctxKey = "request_id"
	clientIPKey  ctxKey = "client_ip"
	datasetIDKey ctxKey = "dataset_id"
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, strings.TrimSpace(ip))
}

func ClientIPFromContext(ctx context.Context) string {
	return stringValue(ctx, clientIPKey)
}

// WithDatasetID tags work performed on behalf of one dataset, such as an ingestion run.
func WithDatasetID(ctx context.Context, datasetID string) context.Context {
	return context.WithValue(ctx, datasetIDKey, strings.TrimSpace(datasetID))
}

func DatasetIDFromContext(ctx context.Context) string {
	return stringValue(ctx, datasetIDKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
