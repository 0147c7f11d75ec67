package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	obscontext "github.com/freewayhq/freeway/internal/observability/context"
	principaldomain "github.com/freewayhq/freeway/internal/principal/domain"
)

const principalKey = "principal"

// AuthRequired resolves the bearer token into a Principal and stores it on
// the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			AbortWithError(c, principaldomain.ErrUnauthenticated)
			return
		}

		principal, err := s.resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, principaldomain.ErrUnauthenticated)
			return
		}

		c.Set(principalKey, principal)
		ctx := obscontext.WithPrincipal(c.Request.Context(), principal.ID, principal.Username)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// AdminRequired gates administrative routes. Run it after AuthRequired.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := currentPrincipal(c)
		if err := principaldomain.RequireAdmin(principal); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// IngressRateLimit is the optional redis-backed abuse gate in front of the
// completion endpoint. It never consults the usage ledger; admission still
// owns quota decisions.
func (s *Server) IngressRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.ingress.Enabled() {
			c.Next()
			return
		}

		principal := currentPrincipal(c)
		if principal == nil {
			AbortWithError(c, principaldomain.ErrUnauthenticated)
			return
		}

		result, err := s.ingress.Allow(c.Request.Context(), principal.ID)
		if err != nil {
			// Fail open on redis trouble; quotas still apply downstream.
			s.log.Warn("ingress limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			if result.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Detail: "too many requests"})
			return
		}

		c.Next()
	}
}

func currentPrincipal(c *gin.Context) *principaldomain.Principal {
	value, ok := c.Get(principalKey)
	if !ok {
		return nil
	}
	principal, ok := value.(*principaldomain.Principal)
	if !ok {
		return nil
	}
	return principal
}

func bearerToken(c *gin.Context) string {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
