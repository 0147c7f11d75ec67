package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	principaldomain "github.com/freewayhq/freeway/internal/principal/domain"
	providerdomain "github.com/freewayhq/freeway/internal/provider/domain"
)

// ChatCompletions proxies one completion request through the pipeline.
func (s *Server) ChatCompletions(c *gin.Context) {
	principal := currentPrincipal(c)
	if principal == nil {
		AbortWithError(c, principaldomain.ErrUnauthenticated)
		return
	}

	var req providerdomain.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	c.Set("model", req.Model)

	if req.Stream {
		sink := newSSESink(c.Writer)
		if err := s.completionSvc.Stream(c.Request.Context(), principal, req, sink); err != nil {
			AbortWithError(c, err)
		}
		return
	}

	resp, err := s.completionSvc.Complete(c.Request.Context(), principal, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// sseSink adapts the gin response writer into a completion.Sink. Headers go
// out with the first frame so pre-stream failures can still render a JSON
// error body.
type sseSink struct {
	writer  gin.ResponseWriter
	flusher http.Flusher
	started bool
}

func newSSESink(w gin.ResponseWriter) *sseSink {
	flusher, _ := w.(http.Flusher)
	return &sseSink{writer: w, flusher: flusher}
}

func (s *sseSink) Send(data []byte) error {
	if !s.started {
		s.started = true
		header := s.writer.Header()
		header.Set("Content-Type", "text/event-stream")
		header.Set("Cache-Control", "no-cache")
		header.Set("Connection", "keep-alive")
		header.Set("X-Accel-Buffering", "no")
		s.writer.WriteHeader(http.StatusOK)
	}

	if _, err := s.writer.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.writer.Write(data); err != nil {
		return err
	}
	_, err := s.writer.Write([]byte("\n\n"))
	return err
}

func (s *sseSink) Flush() {
	if s.flusher != nil {
		s.flusher.Flush()
	}
}
