package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/conduit-lang/catalog/internal/web/response"
	"go.uber.org/zap"
)

// Recovery turns a panicking handler into a 500 and logs the stack.
func Recovery(logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.String("request_id", GetRequestID(r.Context())),
						zap.ByteString("stack", debug.Stack()),
					)
					response.RenderInternalError(w)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
