// Package server exposes the StockSync REST API.
package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/ogulcanaydogan/stocksync/internal/auth"
	"github.com/ogulcanaydogan/stocksync/pkg/alerting"
	"github.com/ogulcanaydogan/stocksync/pkg/barcode"
	"github.com/ogulcanaydogan/stocksync/pkg/model"
	"github.com/ogulcanaydogan/stocksync/pkg/notify"
	"github.com/ogulcanaydogan/stocksync/pkg/scheduler"
	"github.com/ogulcanaydogan/stocksync/pkg/storage"
)

// BarcodeLookup resolves a barcode through an external catalog.
type BarcodeLookup interface {
	Lookup(ctx context.Context, code string) (*barcode.Info, error)
}

// Previewer evaluates a user's alerts without sending them.
type Previewer interface {
	Preview(ctx context.Context, user model.User) (*alerting.Plan, error)
}

// SweepControl triggers and inspects the alert sweep.
type SweepControl interface {
	RunNow(ctx context.Context, trigger model.Trigger) bool
	State() scheduler.State
	NextFire(now time.Time) time.Time
	LastReport() (model.SweepReport, bool)
}

// Deps are the collaborators the API is built from. Mailer, Barcode and
// Sweeps may be nil when the corresponding feature is not configured.
type Deps struct {
	Store   storage.Storage
	Tokens  *auth.Tokens
	OTPs    auth.OTPStore
	Mailer  notify.Mailer
	Barcode BarcodeLookup
	Preview Previewer
	Sweeps  SweepControl
}

// Options tune the HTTP surface.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	BodyLimit    int
	AdminToken   string
	SecureCookie bool
	OTPTTL       time.Duration
	LoginLimit   int
	LoginWindow  time.Duration
}

// Server provides the REST API.
type Server struct {
	deps   Deps
	opts   Options
	app    *fiber.App
	logger *slog.Logger
	now    func() time.Time
}

// NewServer creates an API server.
func NewServer(deps Deps, opts Options, logger *slog.Logger) *Server {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = auth.DefaultOTPTTL
	}
	if opts.LoginLimit <= 0 {
		opts.LoginLimit = 5
	}
	if opts.LoginWindow <= 0 {
		opts.LoginWindow = 10 * time.Minute
	}

	s := &Server{
		deps:   deps,
		opts:   opts,
		logger: logger,
		now:    time.Now,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "StockSync",
		ReadTimeout:           opts.ReadTimeout,
		WriteTimeout:          opts.WriteTimeout,
		BodyLimit:             opts.BodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(requestid.New())
	s.app.Use(recover.New())
	s.app.Use(helmet.New())
	s.app.Use(s.logRequests)

	s.app.Get("/healthz", s.handleHealth)

	api := s.app.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.Post("/signup", s.handleSignup)
	authGroup.Post("/verify-email", s.handleVerifyEmail)
	authGroup.Post("/login", limiter.New(limiter.Config{
		Max:        s.opts.LoginLimit,
		Expiration: s.opts.LoginWindow,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"message": "Too many login attempts, please try again later",
			})
		},
	}), s.handleLogin)
	authGroup.Post("/refresh", s.handleRefresh)
	authGroup.Post("/logout", s.requireUser, s.handleLogout)
	authGroup.Get("/me", s.requireUser, s.handleMe)
	authGroup.Put("/preferences", s.requireUser, s.handleUpdatePreferences)

	products := api.Group("/products", s.requireUser)
	products.Get("/", s.handleListProducts)
	products.Post("/", s.handleCreateProduct)
	products.Get("/stats", s.handleStats)
	products.Get("/:id", s.handleGetProduct)
	products.Put("/:id", s.handleUpdateProduct)
	products.Delete("/:id", s.handleDeleteProduct)

	categories := api.Group("/categories", s.requireUser)
	categories.Get("/", s.handleListCategories)
	categories.Post("/", s.handleCreateCategory)
	categories.Put("/:id", s.handleUpdateCategory)
	categories.Delete("/:id", s.handleDeleteCategory)

	api.Get("/notifications", s.requireUser, s.handleNotifications)

	bc := api.Group("/barcode", s.requireUser)
	bc.Post("/lookup", s.handleBarcodeLookup)
	bc.Post("/scan", s.handleRecordScan)
	bc.Get("/history", s.handleScanHistory)

	alerts := api.Group("/alerts")
	alerts.Get("/preview", s.requireUser, s.handleAlertPreview)
	alerts.Post("/sweep", s.requireAdmin, s.handleSweep)
	alerts.Get("/status", s.requireAdmin, s.handleSweepStatus)
}

// App returns the underlying fiber application.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves the API on addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// handleError renders every unhandled error as JSON without leaking internals.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
	}

	s.logger.Error("request failed",
		"request_id", requestID(c),
		"method", c.Method(),
		"path", c.Path(),
		"error", err,
	)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Server error"})
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	if err != nil {
		// Let the error handler pick the status before it is logged.
		if herr := s.app.ErrorHandler(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	s.logger.Debug("http request",
		"request_id", requestID(c),
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok {
		return id
	}
	return ""
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"message": msg})
}
