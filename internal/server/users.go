package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	principaldomain "github.com/freewayhq/freeway/internal/principal/domain"
	userdomain "github.com/freewayhq/freeway/internal/user/domain"
)

// ListUsers returns all accounts for admins; everyone else sees only their
// own row.
func (s *Server) ListUsers(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		AbortWithError(c, principaldomain.ErrUnauthenticated)
		return
	}

	if !principal.IsAdmin {
		user, err := s.userSvc.Get(c.Request.Context(), principal.Username)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, []userdomain.User{*user})
		return
	}

	users, err := s.userSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) CreateUser(c *gin.Context) {
	var req userdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	user, err := s.userSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (s *Server) UpdateUser(c *gin.Context) {
	var req userdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	user, err := s.userSvc.Update(c.Request.Context(), c.Param("username"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) DeleteUser(c *gin.Context) {
	if err := s.userSvc.Delete(c.Request.Context(), c.Param("username")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
