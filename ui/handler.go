package ui

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/jdziat/simple-job-runner/pkg/runner"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTemplates = template.Must(template.New("").Funcs(template.FuncMap{
	"datetime": func(t *time.Time) string {
		if t == nil || t.IsZero() {
			return "never"
		}
		return t.Local().Format("2006-01-02 15:04:05")
	},
}).ParseFS(templatesFS, "templates/*.html"))

// Handler creates an http.Handler serving the job API under /api and the job
// list page at /.
//
// Usage:
//
//	mux.Handle("/", ui.Handler(r, ui.WithCORSOrigins("http://localhost:5173")))
func Handler(r *runner.Runner, opts ...Option) http.Handler {
	cfg := &config{}
	for _, opt := range opts {
		opt.apply(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(cfg.logger))
	engine.SetHTMLTemplate(pageTemplates)

	s := &server{runner: r, logger: cfg.logger}
	s.routes(engine)

	var h http.Handler = engine
	if len(cfg.corsOrigins) > 0 {
		h = cors.New(cors.Options{
			AllowedOrigins: cfg.corsOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type", "Accept", "Authorization"},
		}).Handler(h)
	}
	if cfg.middleware != nil {
		h = cfg.middleware(h)
	}

	// HTTP/2 without TLS for API clients that speak h2c
	return h2c.NewHandler(h, &http2.Server{})
}

func (s *server) routes(e *gin.Engine) {
	e.GET("/", s.listPage)
	e.POST("/jobs/:id/run", s.runPage)
	e.POST("/jobs/:id/delete", s.deletePage)

	api := e.Group("/api")
	api.GET("/jobs", s.listJobs)
	api.POST("/jobs", s.createJob)
	api.GET("/jobs/:id", s.getJob)
	api.PUT("/jobs/:id", s.updateJob)
	api.DELETE("/jobs/:id", s.deleteJob)
	api.POST("/jobs/:id/run", s.runJob)
	api.GET("/stats", s.stats)
	api.GET("/tasks", s.listTasks)
	api.GET("/schedules", s.listSchedules)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
