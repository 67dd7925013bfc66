package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"quadro/internal/logging"
	"quadro/internal/ports"
	"quadro/internal/services"
)

// Deps carries the wired service graph the HTTP layer exposes
type Deps struct {
	Broadcaster  *services.Broadcaster
	Engine       *services.HookEngine
	Hooks        ports.HookRepository
	Ledger       ports.ExecutionLedger
	Manager      *services.SessionManager
	Messages     ports.MessageRepository
	Periodicals  ports.PeriodicalTaskRepository
	Sessions     ports.SessionRepository
	Tasks        ports.TaskStore
	WorktreeBase string
	Worktrees    ports.WorktreeManager
}

// Server is the engine's HTTP and WebSocket surface
type Server struct {
	deps       Deps
	httpServer *http.Server
}

// New creates the server with routes registered
func New(host string, port int, debug bool, deps Deps) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	corsConfig.AllowWebSockets = true
	engine.Use(cors.New(corsConfig))

	s := &Server{
		deps: deps,
		httpServer: &http.Server{
			Addr:        fmt.Sprintf("%s:%d", host, port),
			Handler:     engine,
			ReadTimeout: 30 * time.Second,
		},
	}
	s.routes(engine)
	return s
}

func (s *Server) routes(engine *gin.Engine) {
	h := &handler{deps: s.deps}

	api := engine.Group("/api")
	api.GET("/health", h.health)
	api.GET("/executors", h.listExecutors)

	api.POST("/tasks/:id/moved", h.taskMoved)
	api.GET("/tasks/:id/executions", h.listExecutions)
	api.GET("/tasks/:id/messages", h.listMessages)
	api.GET("/tasks/:id/ws", h.taskSocket)

	api.GET("/boards/:id/ws", h.boardSocket)
	api.GET("/boards/:id/hooks", h.listHooks)
	api.GET("/boards/:id/periodicals", h.listPeriodicals)

	api.POST("/hooks", h.createHook)
	api.PUT("/hooks/:id", h.updateHook)
	api.DELETE("/hooks/:id", h.deleteHook)

	api.PUT("/columns/:id", h.upsertColumn)
	api.GET("/columns/:id/hooks", h.listBindings)
	api.POST("/column-hooks", h.createBinding)
	api.PUT("/column-hooks/:id", h.updateBinding)
	api.DELETE("/column-hooks/:id", h.deleteBinding)

	api.POST("/periodicals", h.createPeriodical)
	api.PUT("/periodicals/:id/enabled", h.setPeriodicalEnabled)
	api.DELETE("/periodicals/:id", h.deletePeriodical)
}

// Handler exposes the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	logging.Logger.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
