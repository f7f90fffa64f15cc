package middleware

import (
	"context"
	"net/http"

	"github.com/EduShopX/edushop/internal/httputil"
	"github.com/EduShopX/edushop/pkg/logger"
)

// BlockChecker reports whether an IP is denied.
type BlockChecker interface {
	IsBlocked(ctx context.Context, ip string) (bool, error)
}

// BlocklistMiddleware refuses requests from blocked IPs with 403. Lookup
// failures let the request through. A nil resolver uses the connection
// address.
func BlocklistMiddleware(checker BlockChecker, resolver *IPResolver, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewDefault("blocklist")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := resolver.ClientIP(r)
			blocked, err := checker.IsBlocked(r.Context(), ip)
			if err != nil {
				log.WithContext(r.Context()).WithError(err).Warn("blocklist lookup failed")
			}
			if blocked {
				log.LogSecurityEvent(r.Context(), "blocked_ip", map[string]interface{}{"ip": ip, "path": r.URL.Path})
				httputil.WriteDetail(w, http.StatusForbidden, "Your IP address has been blocked.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
