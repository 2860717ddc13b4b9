// Package server assembles the HTTP application from configuration.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	log "github.com/sirupsen/logrus"

	"github.com/wichananm65/paint-sync/internal/auth"
	"github.com/wichananm65/paint-sync/internal/bitrix"
	"github.com/wichananm65/paint-sync/internal/config"
	"github.com/wichananm65/paint-sync/internal/crmsync"
	"github.com/wichananm65/paint-sync/internal/logging"
	"github.com/wichananm65/paint-sync/internal/paint"
	"github.com/wichananm65/paint-sync/internal/tasks"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	cfg        config.Config
	app        *fiber.App
	queue      *tasks.Queue
	dispatcher *crmsync.Dispatcher
	scheduler  *crmsync.Scheduler
	service    *paint.Service
}

// New wires the store, CRM client, queue and routes. httpClient may be nil.
func New(cfg config.Config, repo paint.Repository, httpClient *http.Client) *Server {
	var remote crmsync.Remote
	client, err := bitrix.New(cfg.Bitrix, httpClient)
	switch {
	case err == nil:
		remote = client
		log.WithField("entity_type_id", cfg.Bitrix.EntityTypeID).Info("bitrix integration enabled")
	case errors.Is(err, bitrix.ErrNotConfigured):
		log.Warn("bitrix integration not configured, remote sync disabled")
	default:
		log.WithError(err).Error("bitrix client setup failed, remote sync disabled")
	}

	queue := tasks.NewQueue(cfg.Queue.Size, cfg.Queue.Workers, cfg.Queue.TaskTimeout)
	dispatcher := crmsync.NewDispatcher(remote, repo, queue, cfg.Bitrix.AutoSync)
	service := paint.NewService(repo, dispatcher)

	s := &Server{
		cfg:        cfg,
		queue:      queue,
		dispatcher: dispatcher,
		scheduler:  crmsync.NewScheduler(dispatcher, cfg.Bitrix.SyncInterval),
		service:    service,
	}
	s.app = s.buildApp()
	return s
}

func (s *Server) buildApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "paint-sync",
		DisableStartupMessage: true,
		Immutable:             true,
	})
	app.Use(recover.New())
	app.Use(logging.Middleware())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  s.cfg.CORSOrigins,
		AllowMethods:  "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + logging.RequestIDHeader,
		ExposeHeaders: logging.RequestIDHeader,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	paint.NewHandler(s.service).RegisterRoutes(app)

	var protect []fiber.Handler
	if s.cfg.AdminJWTSecret != "" {
		protect = []fiber.Handler{auth.Protect(s.cfg.AdminJWTSecret), auth.RequireOperator}
	}
	crmsync.NewHandler(s.dispatcher, crmsync.HandlerConfig{
		EntityTypeID:    s.cfg.Bitrix.EntityTypeID,
		WebhooksEnabled: s.cfg.Bitrix.WebhooksEnabled,
		Protect:         protect,
	}).RegisterRoutes(app)

	return app
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Dispatcher() *crmsync.Dispatcher { return s.dispatcher }

func (s *Server) Service() *paint.Service { return s.service }

// Run serves until ctx is cancelled, then stops the listener and drains the
// sync queue.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.scheduler.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", ln.Addr().String()).Info("http server listening")
		errCh <- s.app.Listener(ln)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
	}
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown incomplete")
	}
	if err := s.Drain(shutdownCtx); err != nil {
		log.WithError(err).Warn("sync queue not drained")
	}
	log.Info("http server stopped")
	return serveErr
}

// Drain waits for pending sync tasks.
func (s *Server) Drain(ctx context.Context) error {
	return s.queue.Shutdown(ctx)
}
