package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/giantswarm/mcp-oauth/storage"
	"github.com/giantswarm/mcp-oauth/storage/memory"
	"github.com/gin-gonic/gin"

	"github.com/insuratask/insuratask/internal/calsync"
	"github.com/insuratask/insuratask/internal/export"
	"github.com/insuratask/insuratask/internal/instrumentation"
	"github.com/insuratask/insuratask/internal/logging"
	"github.com/insuratask/insuratask/internal/task"
	"github.com/insuratask/insuratask/internal/templates"
)

// CalendarSync is the calendar sync surface the API exposes.
type CalendarSync interface {
	Status(ctx context.Context) (*calsync.Status, error)
	Disconnect(ctx context.Context) error
	Sync(ctx context.Context) (*calsync.Result, error)
	Conflicts(ctx context.Context) ([]calsync.Conflict, error)
	Resolve(ctx context.Context, taskID int64, keep calsync.ConflictRule) error
	Settings(ctx context.Context) (calsync.Settings, error)
	UpdateSettings(ctx context.Context, s calsync.Settings) (calsync.Settings, error)
}

// CalendarAuth runs the Google OAuth consent flow.
type CalendarAuth interface {
	AuthURL(state string) (string, error)
	Connect(ctx context.Context, code string) error
}

// StateStore keeps the OAuth state values handed out by the auth-url route
// until the callback uses them. *memory.Store satisfies it.
type StateStore interface {
	SaveAuthorizationState(ctx context.Context, state *storage.AuthorizationState) error
	GetAuthorizationState(ctx context.Context, stateID string) (*storage.AuthorizationState, error)
	DeleteAuthorizationState(ctx context.Context, stateID string) error
}

// Services bundles the domain services behind the routes.
type Services struct {
	Tasks     *task.Service
	Templates *templates.Service
	Export    *export.Service
	Sync      CalendarSync
	Auth      CalendarAuth
}

// Config holds the optional collaborators of the router.
type Config struct {
	Logger      *slog.Logger
	Metrics     *instrumentation.Metrics
	CORSOrigins []string
	// States holds issued OAuth states. A process-lifetime memory store is
	// used when nil.
	States StateStore
	// StateTTL bounds how long an OAuth state stays valid. Defaults to 10m.
	StateTTL time.Duration
}

// API holds the route handlers.
type API struct {
	svc      Services
	logger   *slog.Logger
	metrics  *instrumentation.Metrics
	states   StateStore
	stateTTL time.Duration
	stateMu  sync.Mutex // makes reading and deleting a state one step
}

// NewRouter builds the gin engine with every route and middleware mounted.
func NewRouter(svc Services, cfg Config) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	states := cfg.States
	if states == nil {
		states = memory.New()
	}
	a := &API{
		svc:      svc,
		logger:   logging.WithComponent(logger, "api"),
		metrics:  cfg.Metrics,
		states:   states,
		stateTTL: ttl,
	}

	r := gin.New()
	r.Use(
		requestID(),
		a.recovery(),
		a.accessLog(),
		a.observe(),
		cors(cfg.CORSOrigins),
	)
	r.NoRoute(func(c *gin.Context) {
		writeError(c, 404, "route not found", nil)
	})

	api := r.Group("/api")
	{
		tasks := api.Group("/tasks")
		tasks.GET("", a.handle(a.listTasks))
		tasks.POST("", a.handle(a.createTask))
		tasks.GET("/stats", a.handle(a.taskStats))
		tasks.GET("/overdue", a.handle(a.overdueTasks))
		tasks.GET("/today", a.handle(a.todayTasks))
		tasks.GET("/calendar", a.handle(a.calendarMonth))
		tasks.GET("/:id", a.handle(a.getTask))
		tasks.PUT("/:id", a.handle(a.updateTask))
		tasks.PATCH("/:id", a.handle(a.updateTask))
		tasks.DELETE("/:id", a.handle(a.deleteTask))
		tasks.PATCH("/:id/toggle", a.handle(a.toggleTask))

		tpl := api.Group("/templates")
		tpl.GET("", a.handle(a.listTemplates))
		tpl.POST("", a.handle(a.createTemplate))
		tpl.POST("/preview", a.handle(a.previewTemplate))
		tpl.GET("/export", a.handle(a.exportTemplates))
		tpl.POST("/import", a.handle(a.importTemplates))
		tpl.GET("/:id", a.handle(a.getTemplate))
		tpl.PUT("/:id", a.handle(a.updateTemplate))
		tpl.DELETE("/:id", a.handle(a.deleteTemplate))
		tpl.POST("/:id/execute", a.handle(a.executeTemplate))
		tpl.GET("/:id/instances", a.handle(a.templateInstances))

		api.GET("/export/:format", a.handle(a.exportTasks))

		cal := api.Group("/calendar")
		cal.GET("/status", a.handle(a.calendarStatus))
		cal.GET("/auth-url", a.handle(a.calendarAuthURL))
		cal.GET("/callback", a.handle(a.calendarCallback))
		cal.POST("/disconnect", a.handle(a.calendarDisconnect))
		cal.POST("/sync", a.handle(a.calendarSync))
		cal.GET("/conflicts", a.handle(a.calendarConflicts))
		cal.POST("/conflicts/:taskId/resolve", a.handle(a.calendarResolve))
		cal.GET("/settings", a.handle(a.calendarSettings))
		cal.PUT("/settings", a.handle(a.updateCalendarSettings))
	}

	return r
}
