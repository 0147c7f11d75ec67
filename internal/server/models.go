package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	registrydomain "github.com/freewayhq/freeway/internal/registry/domain"
)

func (s *Server) ListModels(c *gin.Context) {
	models, err := s.registrySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models)
}

func (s *Server) CreateModel(c *gin.Context) {
	var req registrydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	model, err := s.registrySvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, model)
}

func (s *Server) UpdateModel(c *gin.Context) {
	var req registrydomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	model, err := s.registrySvc.Update(c.Request.Context(), c.Param("name"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, model)
}

func (s *Server) DeleteModel(c *gin.Context) {
	if err := s.registrySvc.Delete(c.Request.Context(), c.Param("name")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
