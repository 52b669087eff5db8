// Package preview serves an HTTP endpoint for rendering templates and the
// entries of a bundle while they are being written.
package preview

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/slplayer/sltemplate/pkg/bundle"
	"github.com/slplayer/sltemplate/pkg/outcheck"
	"github.com/slplayer/sltemplate/pkg/sltmpl"
)

type Server struct {
	bundle *bundle.Bundle
	router *gin.Engine
}

// New builds a server. b may be nil, in which case only ad-hoc rendering
// is available.
func New(b *bundle.Bundle) *Server {
	s := &Server{bundle: b, router: gin.New()}
	s.router.Use(Logger())
	s.router.Use(gin.Recovery())
	s.loadRoutes()
	return s
}

func (s *Server) loadRoutes() {
	s.router.GET("/healthz", s.health)
	s.router.POST("/render", s.render)
	s.router.GET("/templates", s.list)
	s.router.GET("/templates/:name", s.renderEntry)
}

func (s *Server) Handler() http.Handler { return s.router }

// Run listens on addr until the server fails.
func (s *Server) Run(addr string) error {
	slog.Info("preview server listening", "addr", addr)
	return s.router.Run(addr)
}

// Logger logs each request with slog instead of gin's default logger.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		t := time.Now()
		c.Next()
		slog.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(t),
			"client", c.ClientIP(),
		)
	}
}

type renderRequest struct {
	Template string         `json:"template"`
	Context  map[string]any `json:"context"`
	Format   string         `json:"format"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) render(c *gin.Context) {
	var req renderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}
	tpl, err := sltmpl.Parse(req.Template)
	if err != nil {
		sendError(c, http.StatusBadRequest, err)
		return
	}
	env, err := s.env(c)
	if err != nil {
		sendError(c, http.StatusInternalServerError, err)
		return
	}
	text, err := tpl.RenderEnv(sltmpl.Context(req.Context), env)
	if err != nil {
		sendError(c, http.StatusUnprocessableEntity, err)
		return
	}
	if err := outcheck.Check(req.Format, text); err != nil {
		sendError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.Data(http.StatusOK, contentType(req.Format), []byte(text))
}

// env uses the bundle's globals and macros when a bundle is loaded.
func (s *Server) env(c *gin.Context) (*sltmpl.Env, error) {
	if s.bundle == nil {
		return &sltmpl.Env{Globals: sltmpl.NewGlobals()}, nil
	}
	return s.bundle.Env(c.Request.Context())
}

func (s *Server) list(c *gin.Context) {
	names := []string{}
	if s.bundle != nil {
		names = s.bundle.Names()
	}
	c.JSON(http.StatusOK, gin.H{"templates": names})
}

// renderEntry renders a bundle entry; query parameters are added to its
// render context.
func (s *Server) renderEntry(c *gin.Context) {
	if s.bundle == nil {
		sendError(c, http.StatusNotFound, errors.New("no bundle loaded"))
		return
	}
	data := map[string]any{}
	for k, vals := range c.Request.URL.Query() {
		data[k] = vals[0]
	}
	r, err := s.bundle.Render(c.Request.Context(), c.Param("name"), data)
	var nf sltmpl.ErrTemplateNotFound
	if errors.As(err, &nf) {
		sendError(c, http.StatusNotFound, err)
		return
	}
	if err != nil {
		sendError(c, http.StatusUnprocessableEntity, err)
		return
	}
	c.Data(http.StatusOK, contentType(string(r.Format)), []byte(r.Text))
}

func sendError(c *gin.Context, status int, err error) {
	body := gin.H{"error": err.Error()}
	var te *sltmpl.Error
	if errors.As(err, &te) {
		body["kind"] = te.Kind.String()
	}
	slog.Warn("request failed", "path", c.Request.URL.Path, "status", status, "error", err)
	c.AbortWithStatusJSON(status, body)
}

func contentType(format string) string {
	switch format {
	case "json":
		return "application/json; charset=utf-8"
	case "yaml":
		return "application/yaml; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}
