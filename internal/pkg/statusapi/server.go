package statusapi

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/roamsim/esim-reconciler/internal/pkg/cache"
	"github.com/roamsim/esim-reconciler/internal/pkg/reconcile"
)

const (
	countsCacheKey = "statusapi:event_counts"
	countsCacheTTL = 3 * time.Second
)

// TickReporter exposes the scheduler's last tick outcome.
type TickReporter interface {
	LastTick() (time.Time, error)
}

// Server is a small operational HTTP surface for the worker: liveness and
// a queue-depth snapshot. It never touches reconciliation state beyond
// read-only counts.
type Server struct {
	app      *fiber.App
	db       *gorm.DB
	reporter TickReporter
}

// New builds the status server.
func New(db *gorm.DB, reporter TickReporter) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	app.Use(recover.New(), logger.New())

	s := &Server{
		app:      app,
		db:       db,
		reporter: reporter,
	}

	app.Get("/healthz", s.handleHealthz)
	app.Get("/status", s.handleStatus)

	return s
}

// Listen blocks serving the status API.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown stops the server, waiting briefly for in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

func (s *Server) handleHealthz(c *fiber.Ctx) error {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.Ping()
	}
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// eventCounts is the cacheable part of the status response.
type eventCounts struct {
	Pending   int64 `json:"pending_events"`
	Processed int64 `json:"processed_events"`
}

// loadCounts returns the event counters, served from the Redis cache for a
// few seconds to keep aggressive status polling off the store. The cache
// is best effort; on any cache error the counts come from the database.
func (s *Server) loadCounts() (eventCounts, error) {
	if raw, err := cache.Get(countsCacheKey); err == nil {
		var cached eventCounts
		if json.Unmarshal([]byte(raw), &cached) == nil {
			return cached, nil
		}
	}

	repo := reconcile.NewRepository(s.db)

	pending, err := repo.CountPendingEvents()
	if err != nil {
		return eventCounts{}, err
	}
	processed, err := repo.CountProcessedEvents()
	if err != nil {
		return eventCounts{}, err
	}

	counts := eventCounts{Pending: pending, Processed: processed}
	if data, err := json.Marshal(counts); err == nil {
		_ = cache.Set(countsCacheKey, data, countsCacheTTL)
	}
	return counts, nil
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	counts, err := s.loadCounts()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	resp := fiber.Map{
		"pending_events":   counts.Pending,
		"processed_events": counts.Processed,
	}

	if s.reporter != nil {
		lastTick, lastErr := s.reporter.LastTick()
		if !lastTick.IsZero() {
			resp["last_tick_at"] = lastTick
		}
		if lastErr != nil {
			resp["last_tick_error"] = lastErr.Error()
		}
	}

	return c.JSON(resp)
}
