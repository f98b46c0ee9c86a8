// Package reqctx stores per-request values on a context.Context.
package reqctx

import "context"

type ContextKey string

var (
	RequestIDKey = ContextKey("X-Request-Id")
	MethodKey    = ContextKey("X-Method")
	RouteKey     = ContextKey("X-Route")
	RemoteIPKey  = ContextKey("X-Remote-Ip")
	EntityKey    = ContextKey("X-Entity")
	OperationKey = ContextKey("X-Operation")
	UserIDKey    = ContextKey("X-User-Id")
)

func get(ctx context.Context, key ContextKey) string {
	value, ok := ctx.Value(key).(string)
	if !ok {
		return ""
	}
	return value
}

func SetRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	return get(ctx, RequestIDKey)
}

func SetMethod(ctx context.Context, method string) context.Context {
	return context.WithValue(ctx, MethodKey, method)
}

func GetMethod(ctx context.Context) string {
	return get(ctx, MethodKey)
}

func SetRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

func GetRoute(ctx context.Context) string {
	return get(ctx, RouteKey)
}

func SetRemoteIP(ctx context.Context, remoteIP string) context.Context {
	return context.WithValue(ctx, RemoteIPKey, remoteIP)
}

func GetRemoteIP(ctx context.Context) string {
	return get(ctx, RemoteIPKey)
}

// SetOperation records the read operation a request targets.
func SetOperation(ctx context.Context, entity, operation string) context.Context {
	ctx = context.WithValue(ctx, EntityKey, entity)
	return context.WithValue(ctx, OperationKey, operation)
}

func GetEntity(ctx context.Context) string {
	return get(ctx, EntityKey)
}

func GetOperation(ctx context.Context) string {
	return get(ctx, OperationKey)
}

func SetUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func GetUserID(ctx context.Context) string {
	return get(ctx, UserIDKey)
}

// Fields returns the request values set on ctx as log fields.
func Fields(ctx context.Context) map[string]any {
	fields := map[string]any{}
	for key, name := range map[ContextKey]string{
		RequestIDKey: "request_id",
		EntityKey:    "entity",
		OperationKey: "operation",
		UserIDKey:    "user_id",
	} {
		if value := get(ctx, key); value != "" {
			fields[name] = value
		}
	}
	return fields
}
