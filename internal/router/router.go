package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/radiology-api/internal/handler/auth"
	"github.com/jwalitptl/radiology-api/internal/handler/health"
	importhandler "github.com/jwalitptl/radiology-api/internal/handler/importer"
	"github.com/jwalitptl/radiology-api/internal/handler/patient"
	"github.com/jwalitptl/radiology-api/internal/handler/prometheus"
	"github.com/jwalitptl/radiology-api/internal/importer"
	"github.com/jwalitptl/radiology-api/internal/middleware"
	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/pkg/httputil"
	"github.com/jwalitptl/radiology-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Resource is one entity exposed under /api/<Path>.
type Resource struct {
	Path    string
	Handler Handler
	// Importer is nil for entities that cannot be imported.
	Importer importer.Importer
	// ImportLevel, when set, makes imports require a token of at least
	// that access level regardless of Config.RequireAuthForImport.
	ImportLevel model.AccessLevel
}

type Config struct {
	Mode                 string
	RequireAuthForImport bool
	RateLimitEnabled     bool
	RateLimit            middleware.RateLimiterConfig
	CORS                 middleware.CORSConfig
}

type Router struct {
	engine    *gin.Engine
	config    Config
	auth      *middleware.AuthMiddleware
	authH     *auth.Handler
	patientH  *patient.Handler
	importH   *importhandler.Handler
	healthH   *health.Handler
	metricsH  *prometheus.Handler
	resources []Resource
}

func NewRouter(
	config Config,
	m *metrics.Metrics,
	authMW *middleware.AuthMiddleware,
	authH *auth.Handler,
	patientH *patient.Handler,
	importH *importhandler.Handler,
	healthH *health.Handler,
	metricsH *prometheus.Handler,
	resources ...Resource,
) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	engine := gin.New()
	engine.HandleMethodNotAllowed = true

	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.CORS(config.CORS),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
	)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, httputil.Response{Status: "error", Message: "route not found"})
	})

	return &Router{
		engine:    engine,
		config:    config,
		auth:      authMW,
		authH:     authH,
		patientH:  patientH,
		importH:   importH,
		healthH:   healthH,
		metricsH:  metricsH,
		resources: resources,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", r.metricsH.Handler())

	api := r.engine.Group("/api")
	r.healthH.RegisterRoutes(api)
	r.authH.RegisterRoutes(api, r.auth.Authenticate())

	var limiter gin.HandlerFunc
	if r.config.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(r.config.RateLimit).RateLimit()
	}

	for _, res := range r.resources {
		group := api.Group("/" + res.Path)

		read := group.Group("", r.auth.Authenticate())
		res.Handler.RegisterRoutes(read)

		if res.Importer != nil {
			r.importH.RegisterRoutes(group.Group("", r.importChain(res, limiter)...), res.Importer.Name(), res.Importer.Layout())
		}
		if res.Path == "patients" {
			r.patientH.RegisterRoutes(group, r.auth.Authenticate())
		}
	}
}

func (r *Router) importChain(res Resource, limiter gin.HandlerFunc) []gin.HandlerFunc {
	var chain []gin.HandlerFunc
	switch {
	case res.ImportLevel > 0:
		chain = append(chain, r.auth.Authenticate(), middleware.RequireAccessLevel(res.ImportLevel))
	case r.config.RequireAuthForImport:
		chain = append(chain, r.auth.Authenticate())
	default:
		chain = append(chain, r.auth.Optional())
	}
	if limiter != nil {
		chain = append(chain, limiter)
	}
	return chain
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
