package handler

import (
	"time"

	"github.com/consultation-booking/internal/domain/transaction"
	"github.com/gin-gonic/gin"
)

// LedgerStats reports how many transactions the ledger holds per status
type LedgerStats interface {
	Stats() map[transaction.Status]int
}

// SchedulerState reports whether reconciliation is running
type SchedulerState interface {
	Running() bool
}

// HealthHandler reports liveness for monitoring
type HealthHandler struct {
	ledger      LedgerStats
	scheduler   SchedulerState
	environment string
	startedAt   time.Time
	now         func() time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(environment string, ledger LedgerStats, scheduler SchedulerState) *HealthHandler {
	return &HealthHandler{
		ledger:      ledger,
		scheduler:   scheduler,
		environment: environment,
		startedAt:   time.Now(),
		now:         time.Now,
	}
}

// Health returns status, uptime, environment and ledger occupancy
func (h *HealthHandler) Health(c *gin.Context) {
	now := h.now()

	counts := make(map[string]int)
	for status, n := range h.ledger.Stats() {
		counts[string(status)] = n
	}

	scheduler := "stopped"
	if h.scheduler.Running() {
		scheduler = "running"
	}

	RespondOK(c, HealthResponse{
		Status:        "OK",
		Timestamp:     now.UTC().Format(time.RFC3339),
		UptimeSeconds: now.Sub(h.startedAt).Seconds(),
		Environment:   h.environment,
		Scheduler:     scheduler,
		Transactions:  counts,
	})
}
