package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/zhouzirui/aura/backend/internal/apperr"
	"github.com/zhouzirui/aura/backend/internal/service/admin"
	"github.com/zhouzirui/aura/backend/pkg/utils"
)

// AdminKeyParam is the query parameter carrying the admin secret.
const AdminKeyParam = "admin_key"

// AdminGate rejects callers whose admin_key does not match. In insecure dev
// mode every request passes and each pass is logged as a warning.
func AdminGate(gate *admin.Gate, logger *zap.Logger) func(http.Handler) http.Handler {
	logger = logger.Named("admin")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := gate.Check(r.URL.Query().Get(AdminKeyParam))
			fields := []zap.Field{
				zap.String("path", r.URL.Path),
				zap.String("mode", gate.Mode().String()),
				zap.String("request_id", chimw.GetReqID(r.Context())),
			}

			switch result {
			case admin.Denied:
				logger.Warn("admin request denied", fields...)
				utils.RespondAppError(w, r, apperr.Unauthorized())
				return
			case admin.Bypassed:
				logger.Warn("admin request allowed without a key", fields...)
			default:
				logger.Debug("admin request authenticated", fields...)
			}
			next.ServeHTTP(w, r)
		})
	}
}
