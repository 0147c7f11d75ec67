package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	userdomain "github.com/freewayhq/freeway/internal/user/domain"
)

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges a username/password form for a bearer token. Only wired
// when the local auth backend is active.
func (s *Server) Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		AbortWithError(c, userdomain.ErrInvalidCredentials)
		return
	}

	user, err := s.userSvc.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	token, err := s.localAuth.Issue(*user.Principal())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
	})
}
