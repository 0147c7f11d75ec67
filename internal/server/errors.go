package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/freewayhq/freeway/internal/admission"
	ledgerdomain "github.com/freewayhq/freeway/internal/ledger/domain"
	principaldomain "github.com/freewayhq/freeway/internal/principal/domain"
	providerdomain "github.com/freewayhq/freeway/internal/provider/domain"
	registrydomain "github.com/freewayhq/freeway/internal/registry/domain"
	userdomain "github.com/freewayhq/freeway/internal/user/domain"
)

const (
	detailInvalidCredentials = "Could not validate credentials"
	detailBadLogin           = "Incorrect username or password"
	detailAdminRequired      = "you need to be an admin to perform this action"
	detailUpstreamFailure    = "upstream completion failed"
)

// errorResponse mirrors the {"detail": ...} body shape clients of the original
// gateway already parse.
type errorResponse struct {
	Detail string `json:"detail"`
}

var ErrInvalidRequest = errors.New("invalid_request")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, detail := mapError(lastErr.Err)
		if status == http.StatusUnauthorized {
			c.Header("WWW-Authenticate", "Bearer")
		}
		c.AbortWithStatusJSON(status, errorResponse{Detail: detail})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, string) {
	var denied *admission.DeniedError
	if errors.As(err, &denied) {
		return http.StatusTooManyRequests, denied.Detail
	}

	var notRegistered *registrydomain.NotFoundError
	if errors.As(err, &notRegistered) {
		return http.StatusNotFound, notRegistered.Error()
	}

	var upstream *providerdomain.UpstreamError
	if errors.As(err, &upstream) {
		return http.StatusBadGateway, detailUpstreamFailure
	}

	switch {
	case errors.Is(err, principaldomain.ErrUnauthenticated):
		return http.StatusUnauthorized, detailInvalidCredentials
	case errors.Is(err, userdomain.ErrInvalidCredentials):
		return http.StatusUnauthorized, detailBadLogin
	case errors.Is(err, principaldomain.ErrForbidden):
		return http.StatusForbidden, detailAdminRequired
	case errors.Is(err, userdomain.ErrNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, userdomain.ErrUsernameTaken):
		return http.StatusBadRequest, "username already registered"
	case errors.Is(err, userdomain.ErrInvalidUsername),
		errors.Is(err, userdomain.ErrInvalidPassword),
		errors.Is(err, registrydomain.ErrInvalidName),
		errors.Is(err, ledgerdomain.ErrInvalidDateRange),
		errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, registrydomain.ErrAlreadyExists):
		return http.StatusBadRequest, "model already registered"
	case errors.Is(err, registrydomain.ErrReadOnly):
		return http.StatusBadRequest, "model registry is read-only"
	case errors.Is(err, ledgerdomain.ErrDuplicateEvent):
		return http.StatusConflict, "usage event already recorded"
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// classifyErrorForLog labels request errors for structured logs without
// leaking payload content.
func classifyErrorForLog(err error) (string, string) {
	status, _ := mapError(err)
	switch {
	case status == http.StatusTooManyRequests:
		var denied *admission.DeniedError
		if errors.As(err, &denied) {
			return "quota_denied", denied.Reason
		}
		return "quota_denied", ""
	case status == http.StatusUnauthorized:
		return "auth", "unauthenticated"
	case status == http.StatusForbidden:
		return "auth", "forbidden"
	case status == http.StatusBadGateway:
		return "upstream", "provider_failure"
	case status >= 500:
		return "internal", ""
	default:
		return "client", ""
	}
}
