package middleware

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/tenantctl/internal/domain"
	"github.com/Harshitk-cp/tenantctl/internal/store"
	"github.com/Harshitk-cp/tenantctl/internal/tenantctx"
)

// TenantResolver resolves the request Host to a tenant through the domain
// registry and activates that tenant's database context for the request.
// The binding lives on the request context only, so concurrent requests for
// different tenants stay fully independent; it is released when the handler
// returns, on every exit path.
func TenantResolver(domains domain.DomainStore, switcher *tenantctx.Switcher) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := requestHost(r)

			d, err := domains.GetByDomain(r.Context(), host)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					writeError(w, http.StatusNotFound, "unknown domain")
					return
				}
				writeError(w, http.StatusInternalServerError, "domain lookup failed")
				return
			}

			ctx, release, err := switcher.Activate(r.Context(), d.TenantID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "tenant activation failed")
				return
			}
			defer release()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestHost(r *http.Request) string {
	host := r.Host
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(host)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
