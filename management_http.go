package trainstats

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/goccy/go-json"
	fiber "github.com/gofiber/fiber/v3"
	"github.com/hyp3rd/ewrap"

	"github.com/hyp3rd/trainstats/internal/sentinel"
)

// ManagementHTTPOption configures the management HTTP server.
type ManagementHTTPOption func(*ManagementHTTPServer)

// ManagementHTTPServer exposes a Service over HTTP for operators and machine consumers.
type ManagementHTTPServer struct {
	addr     string
	app      *fiber.App
	authFunc func(fiber.Ctx) error
	logger   Logger
	ln       net.Listener
	started  bool
}

// WithMgmtAuth sets an auth function (return error to block).
func WithMgmtAuth(fn func(fiber.Ctx) error) ManagementHTTPOption {
	return func(s *ManagementHTTPServer) { s.authFunc = fn }
}

// WithMgmtLogger sets the logger used to report serve errors.
func WithMgmtLogger(logger Logger) ManagementHTTPOption {
	return func(s *ManagementHTTPServer) { s.logger = logger }
}

const (
	defaultReadTimeout  = 5 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// NewManagementHTTPServer builds an HTTP server holder (lazy start).
func NewManagementHTTPServer(addr string, opts ...ManagementHTTPOption) *ManagementHTTPServer {
	app := fiber.New(fiber.Config{
		ReadTimeout:  defaultReadTimeout,
		WriteTimeout: defaultWriteTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	srv := &ManagementHTTPServer{
		addr: addr,
		app:  app,
	}
	for _, opt := range opts { // apply options
		opt(srv)
	}

	return srv
}

// Start launches listener (idempotent). Caller provides the service for handler wiring.
func (s *ManagementHTTPServer) Start(ctx context.Context, svc Service) error {
	if s.started { // idempotent
		return nil
	}

	s.mountRoutes(svc)

	lc := net.ListenConfig{}

	ln, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return ewrap.Wrap(err, "mgmt listen")
	}

	s.ln = ln

	go func() {
		serveErr := s.app.Listener(ln, fiber.ListenConfig{DisableStartupMessage: true})
		if serveErr != nil && s.logger != nil {
			s.logger.Printf("management http server stopped: %v", serveErr)
		}
	}()

	s.started = true

	return nil
}

// Address returns the bound address (useful when passing ":0" for ephemeral port). Empty if not started yet.
func (s *ManagementHTTPServer) Address() string {
	if s.ln == nil {
		return ""
	}

	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *ManagementHTTPServer) Shutdown(ctx context.Context) error {
	if !s.started {
		return nil
	}

	ch := make(chan error, 1)

	go func() {
		ch <- s.app.Shutdown()
	}()

	select {
	case <-ctx.Done():
		return sentinel.ErrMgmtHTTPShutdownTimeout
	case err := <-ch:
		return err
	}
}

func (s *ManagementHTTPServer) mountRoutes(svc Service) {
	useAuth := s.wrapAuth

	s.app.Get("/health", useAuth(func(fiberCtx fiber.Ctx) error { return fiberCtx.SendString("ok") }))
	s.app.Get("/stats", useAuth(func(fiberCtx fiber.Ctx) error { return fiberCtx.SendString(svc.Render()) }))
	s.app.Get("/stats/keys", useAuth(func(fiberCtx fiber.Ctx) error {
		return fiberCtx.JSON(fiber.Map{"keys": svc.Keys()})
	}))
	s.app.Get("/stats/value", useAuth(func(fiberCtx fiber.Ctx) error { return getValue(fiberCtx, svc, false) }))
	s.app.Get("/stats/summary", useAuth(func(fiberCtx fiber.Ctx) error { return getValue(fiberCtx, svc, true) }))
	s.app.Get("/stats/snapshot", useAuth(func(fiberCtx fiber.Ctx) error { return fiberCtx.JSON(svc.Snapshot()) }))
	s.app.Post("/stats/reset", useAuth(func(fiberCtx fiber.Ctx) error {
		svc.Reset()

		return fiberCtx.SendStatus(fiber.StatusOK)
	}))
}

func getValue(fiberCtx fiber.Ctx, svc Service, summary bool) error {
	key := fiberCtx.Query("key")
	if key == "" {
		return fiberCtx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing key"})
	}

	v, err := svc.Get(key)
	if errors.Is(err, sentinel.ErrKeyNotFound) {
		return fiberCtx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	if err != nil {
		return err
	}

	if summary {
		s := v.Summary()

		return fiberCtx.JSON(fiber.Map{
			"key":      key,
			"count":    s.Count,
			"minMs":    s.Min.Milliseconds(),
			"maxMs":    s.Max.Milliseconds(),
			"meanMs":   s.Mean.Milliseconds(),
			"medianMs": s.Median.Milliseconds(),
			"p99Ms":    s.P99.Milliseconds(),
		})
	}

	return fiberCtx.JSON(fiber.Map{"key": key, "kind": v.Kind.String(), "text": v.String(), "value": v})
}

// wrapAuth returns an auth-wrapped handler if authFunc provided.
func (s *ManagementHTTPServer) wrapAuth(handler fiber.Handler) fiber.Handler {
	if s.authFunc == nil {
		return handler
	}

	return func(fiberCtx fiber.Ctx) error {
		authErr := s.authFunc(fiberCtx)
		if authErr != nil {
			return authErr
		}

		return handler(fiberCtx)
	}
}
