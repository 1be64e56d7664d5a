package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/baes-monitor/baes-core/internal/access"
	"github.com/baes-monitor/baes-core/internal/audit"
	"github.com/baes-monitor/baes-core/internal/auth"
	"github.com/baes-monitor/baes-core/internal/cascade"
	"github.com/baes-monitor/baes-core/internal/device"
	"github.com/baes-monitor/baes-core/internal/infrastructure/config"
	"github.com/baes-monitor/baes-core/internal/infrastructure/logging"
	"github.com/baes-monitor/baes-core/internal/location"
	"github.com/baes-monitor/baes-core/internal/report"
	"github.com/baes-monitor/baes-core/internal/setting"
	"github.com/baes-monitor/baes-core/internal/visibility"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight requests.
const gracefulShutdownTimeout = 10 * time.Second

// auditChanSize is the buffer of the asynchronous audit writer.
const auditChanSize = 256

// Deps holds what the server needs. DB, Logger and Auth are required;
// Engine defaults to one without telemetry or cache.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	DB      *sql.DB
	Auth    *auth.Service
	Engine  *device.Engine
	Version string
}

// Server is the HTTP API server.
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	version string

	auth         *auth.Service
	engine       *device.Engine
	locations    *location.SQLiteRepository
	devices      *device.SQLiteRepository
	statuses     *device.SQLiteStatusRepository
	roles        *access.SQLiteRoleRepository
	associations *access.SQLiteAssociationRepository
	resolver     *access.Resolver
	visibility   *visibility.Service
	cascade      *cascade.Coordinator
	settings     *setting.Store
	auditRepo    audit.Repository
	exporter     *report.Exporter

	server  *http.Server
	auditCh chan *audit.Entry
	cancel  context.CancelFunc
	done    chan struct{}
}

// New wires the stores on deps.DB. The server is not listening until
// Start is called; Handler serves requests without a listener.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.DB == nil {
		return nil, fmt.Errorf("database is required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service is required")
	}
	engine := deps.Engine
	if engine == nil {
		engine = device.NewEngine(deps.DB)
		engine.SetLogger(deps.Logger)
	}

	coordinator := cascade.New(deps.DB)
	coordinator.SetLogger(deps.Logger)
	coordinator.SetSummaryInvalidator(engine)

	return &Server{
		cfg:          deps.Config,
		logger:       deps.Logger,
		version:      deps.Version,
		auth:         deps.Auth,
		engine:       engine,
		locations:    location.NewSQLiteRepository(deps.DB),
		devices:      device.NewSQLiteRepository(deps.DB),
		statuses:     device.NewSQLiteStatusRepository(deps.DB),
		roles:        access.NewRoleRepository(deps.DB),
		associations: access.NewAssociationRepository(deps.DB),
		resolver:     access.NewResolver(deps.DB),
		visibility:   visibility.NewService(deps.DB),
		cascade:      coordinator,
		settings:     setting.NewStore(deps.DB),
		auditRepo:    audit.NewSQLiteRepository(deps.DB),
		exporter:     report.NewExporter(deps.DB),
	}, nil
}

// Handler returns the router. Audit entries are written inline until
// Start launches the background writer.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start listens in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.auditCh = make(chan *audit.Entry, auditChanSize)
	s.done = make(chan struct{})
	go s.drainAuditLog(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close waits up to gracefulShutdownTimeout for in-flight requests, then
// flushes pending audit entries.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	err := s.server.Shutdown(ctx)
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	if err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
