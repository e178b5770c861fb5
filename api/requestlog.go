package api

import (
	"context"
	"net/http"

	"github.com/consumedhq/consumed/core/access"
	"github.com/consumedhq/consumed/core/logger"
	"github.com/consumedhq/consumed/model"
)

type contextKeyRequestLogType struct{}

var contextKeyRequestLog = &contextKeyRequestLogType{}

func requestLogIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(contextKeyRequestLog).(int64)
	return id
}

// requestLogMiddleware records every inbound request. Logging is best
// effort: a failed write is logged and the request proceeds.
func (b *Backend) requestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, rlog := logger.ContextWithLogger(r.Context())
		entry := &model.RequestLog{}
		err := model.Map(entry, map[string]interface{}{
			"method":     r.Method,
			"uri":        r.URL.RequestURI(),
			"ip":         access.RemoteIP(r),
			"user_agent": r.UserAgent(),
		}, []string{"method", "uri", "ip", "user_agent"})
		if err == nil {
			err = b.store.Insert(ctx, entry)
		}
		if err != nil {
			rlog.Warnln("request log write failed:", err)
		} else {
			ctx = context.WithValue(ctx, contextKeyRequestLog, entry.ID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// linkRequestLogMiddleware links the authenticated user to the request log
// row, also best effort. Runs after the auth middleware.
func (b *Backend) linkRequestLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		identity, ok := access.IdentityFromContext(ctx)
		if ok {
			if logID := requestLogIDFromContext(ctx); logID != 0 {
				identity.RequestLogID = logID
				ctx = access.ContextWithIdentity(ctx, identity)
				if err := b.store.Link(ctx, model.UserRequestLogMeta, identity.UserID, logID); err != nil {
					logger.FromContext(ctx).Warnln("request log link failed:", err)
				}
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
