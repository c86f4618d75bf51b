package http

import (
	"errors"
	"net/http"
	"strings"

	"nftcate/internal/domain"
	"nftcate/internal/infra/auth/rbac"

	"github.com/gin-gonic/gin"
)

const principalContextKey = "principal"

// requireAuth authenticates the bearer token and checks permission on resourceID.
// With AUTH_MODE=none every request passes as an anonymous principal.
func (s *Server) requireAuth(c *gin.Context, permission string, resourceID string) (domain.Principal, bool) {
	if s.cfg.AuthMode == "none" {
		return domain.Principal{}, true
	}
	if s.authInitErr != nil || s.authenticator == nil {
		writeErrorCode(c, http.StatusInternalServerError, "AUTH_CONFIG_ERROR", "auth configuration error")
		return domain.Principal{}, false
	}

	token := strings.TrimSpace(extractBearerToken(c.GetHeader("Authorization")))
	if token == "" {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token")
		return domain.Principal{}, false
	}
	principal, err := s.authenticator.Authenticate(c.Request.Context(), token)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token")
		} else {
			writeError(c, err)
		}
		return domain.Principal{}, false
	}
	c.Set(principalContextKey, principal)
	if s.authorizer != nil {
		if err := s.authorizer.Require(principal, permission, resourceID); err != nil {
			writeAuthzError(c, err)
			return domain.Principal{}, false
		}
	}
	return principal, true
}

func extractBearerToken(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(value), "bearer ") {
		return ""
	}
	return strings.TrimSpace(value[len("bearer "):])
}

func getPrincipal(c *gin.Context) (domain.Principal, bool) {
	raw, ok := c.Get(principalContextKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := raw.(domain.Principal)
	return principal, ok
}

func writeAuthzError(c *gin.Context, err error) {
	if authz, ok := rbac.IsAuthzError(err); ok {
		writeErrorCode(c, http.StatusForbidden, authz.Code, "forbidden")
		return
	}
	if errors.Is(err, domain.ErrUnauthorized) {
		writeErrorCode(c, http.StatusUnauthorized, "UNAUTHORIZED", "unauthorized")
		return
	}
	writeErrorCode(c, http.StatusForbidden, "FORBIDDEN", "forbidden")
}
