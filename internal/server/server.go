package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/freewayhq/freeway/internal/admission"
	"github.com/freewayhq/freeway/internal/completion"
	"github.com/freewayhq/freeway/internal/config"
	ledgerdomain "github.com/freewayhq/freeway/internal/ledger/domain"
	"github.com/freewayhq/freeway/internal/observability"
	obsmiddleware "github.com/freewayhq/freeway/internal/observability/logger"
	obstracing "github.com/freewayhq/freeway/internal/observability/tracing"
	principaldomain "github.com/freewayhq/freeway/internal/principal/domain"
	authlocal "github.com/freewayhq/freeway/internal/principal/local"
	"github.com/freewayhq/freeway/internal/ratelimit"
	registrydomain "github.com/freewayhq/freeway/internal/registry/domain"
	userdomain "github.com/freewayhq/freeway/internal/user/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	resolver      principaldomain.Resolver
	localAuth     *authlocal.Resolver
	userSvc       userdomain.Service
	registrySvc   registrydomain.Service
	ledgerSvc     ledgerdomain.Service
	admissionCtl  *admission.Controller
	completionSvc *completion.Service
	ingress       *ratelimit.IngressLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	Resolver      principaldomain.Resolver
	LocalAuth     *authlocal.Resolver
	UserSvc       userdomain.Service
	RegistrySvc   registrydomain.Service
	LedgerSvc     ledgerdomain.Service
	AdmissionCtl  *admission.Controller
	CompletionSvc *completion.Service
	Ingress       *ratelimit.IngressLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		resolver:      p.Resolver,
		localAuth:     p.LocalAuth,
		userSvc:       p.UserSvc,
		registrySvc:   p.RegistrySvc,
		ledgerSvc:     p.LedgerSvc,
		admissionCtl:  p.AdmissionCtl,
		completionSvc: p.CompletionSvc,
		ingress:       p.Ingress,
	}

	svc.registerRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	if s.cfg.AuthBackend == config.AuthBackendLocal {
		s.engine.POST("/token", s.Login)
	}

	s.engine.POST("/chat/completions", s.AuthRequired(), s.IngressRateLimit(), s.ChatCompletions)
	s.engine.GET("/spend/logs", s.AuthRequired(), s.ListSpendLogs)

	users := s.engine.Group("/users", s.AuthRequired())
	{
		users.GET("", s.ListUsers)
		users.POST("", s.AdminRequired(), s.CreateUser)
		users.PUT("/:username", s.AdminRequired(), s.UpdateUser)
		users.DELETE("/:username", s.AdminRequired(), s.DeleteUser)
	}

	models := s.engine.Group("/models", s.AuthRequired())
	{
		models.GET("", s.ListModels)
		models.POST("", s.AdminRequired(), s.CreateModel)
		models.PUT("/:name", s.AdminRequired(), s.UpdateModel)
		models.DELETE("/:name", s.AdminRequired(), s.DeleteModel)
	}
}
