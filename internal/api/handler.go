package api

import (
	"errors"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/bobby-s-dev/weather-monitor/internal/archive"
	"github.com/bobby-s-dev/weather-monitor/internal/models"
	"github.com/bobby-s-dev/weather-monitor/internal/services"
)

type MonitorView interface {
	Locations() []models.Location
	LastReport() *services.RunReport
	LastRunTime() time.Time
	Busy() bool
}

type RunTrigger interface {
	ForceRun()
	GetStatus() map[string]interface{}
}

type Handler struct {
	monitor   MonitorView
	trigger   RunTrigger
	history   archive.Reader
	clock     clockwork.Clock
	logger    *zap.Logger
	startTime time.Time
}

func NewHandler(monitor MonitorView, trigger RunTrigger, history archive.Reader, clock clockwork.Clock, logger *zap.Logger) *Handler {
	return &Handler{
		monitor:   monitor,
		trigger:   trigger,
		history:   history,
		clock:     clock,
		logger:    logger,
		startTime: clock.Now(),
	}
}

// GetHealth handles GET /api/v1/health
func (h *Handler) GetHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": h.clock.Now(),
		"last_run":  h.monitor.LastRunTime(),
		"uptime":    h.clock.Since(h.startTime).String(),
		"scheduler": h.trigger.GetStatus(),
	})
}

// GetStatus handles GET /api/v1/status
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	report := h.monitor.LastReport()
	if report == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "No run has completed yet",
		})
	}
	return c.JSON(report)
}

// GetCities handles GET /api/v1/cities
func (h *Handler) GetCities(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"cities": h.monitor.Locations(),
	})
}

// GetHistory handles GET /api/v1/history/:city
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	city, err := url.PathUnescape(c.Params("city"))
	if err != nil || !h.configured(city) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown city",
			"city":  c.Params("city"),
		})
	}

	day := c.Query("day", models.DayKey(h.clock.Now()))
	if !models.ValidDayKey(day) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Day parameter must be YYYYMMDD",
		})
	}

	records, err := h.history.History(c.UserContext(), city, day)
	if err != nil {
		if errors.Is(err, archive.ErrInvalidLocation) || errors.Is(err, archive.ErrInvalidDay) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("Failed to read history",
			zap.String("city", city),
			zap.String("day", day),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Failed to read history",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"city":    city,
		"day":     day,
		"records": records,
	})
}

// TriggerRun handles POST /api/v1/run
func (h *Handler) TriggerRun(c *fiber.Ctx) error {
	if h.monitor.Busy() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "A run is already in progress",
		})
	}
	h.trigger.ForceRun()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status": "triggered",
	})
}

func (h *Handler) configured(city string) bool {
	for _, loc := range h.monitor.Locations() {
		if loc.Name == city {
			return true
		}
	}
	return false
}
