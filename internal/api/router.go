// Package api is the consumer side of the control plane for a serving
// process: every request is resolved from its Host header to a tenant and
// handled inside that tenant's activated database context.
package api

import (
	"encoding/json"
	"net/http"

	mw "github.com/Harshitk-cp/tenantctl/internal/api/middleware"
	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"github.com/Harshitk-cp/tenantctl/internal/tenantctx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

func NewRouter(domains domain.DomainStore, switcher *tenantctx.Switcher, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Everything below runs inside the resolved tenant's database context.
	r.Group(func(r chi.Router) {
		r.Use(mw.TenantResolver(domains, switcher))
		r.Use(mw.Logging(logger))

		r.Get("/whoami", func(w http.ResponseWriter, req *http.Request) {
			b, ok := tenantctx.Current(req.Context())
			if !ok {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "no tenant context"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{
				"tenant_id": b.Tenant.ID,
				"database":  b.Tenant.Database(),
			})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
