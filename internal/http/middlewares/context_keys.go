package middlewares

// gin context keys owned by this package.
const (
	ctxUserKey      = "auth.user"
	ctxRequestIDKey = "request_id"
)
