package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/kiranshivaraju/bugboard/internal/api/response"
)

// Recovery turns a handler panic into a 500 response. The response carries
// the request ID so a client report can be matched to the logged stack.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			reqID := chimw.GetReqID(r.Context())
			slog.Error("panic recovered",
				"error", rec,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
				"request_id", reqID,
			)

			var details any
			if reqID != "" {
				details = map[string]string{"request_id": reqID}
			}
			response.InternalError(w, details)
		}()
		next.ServeHTTP(w, r)
	})
}
