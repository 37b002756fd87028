package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dulcera/syncbridge/realtime"
)

// ServiceHealth is one external system's health probe outcome.
type ServiceHealth struct {
	Healthy bool   `json:"healthy"`
	Error   string `json:"error,omitempty"`
}

// HealthReport aggregates the health of every external system plus the hub.
type HealthReport struct {
	Status      string                   `json:"status"`
	Services    map[string]ServiceHealth `json:"services"`
	Hub         realtime.Stats           `json:"hub"`
	DeadLetters int                      `json:"deadLetters"`
	CheckedAt   time.Time                `json:"checkedAt"`
}

// CheckHealth probes every configured connector and snapshots the result.
// Probe failures are reported, never propagated.
func (o *Orchestrator) CheckHealth(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:    "healthy",
		Services:  make(map[string]ServiceHealth),
		CheckedAt: time.Now(),
	}

	probe := func(name string, fn func(context.Context) error) {
		probeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		if err := fn(probeCtx); err != nil {
			report.Services[name] = ServiceHealth{Healthy: false, Error: err.Error()}
			report.Status = "degraded"
			o.logger.Warn("health probe failed",
				slog.String("service", name), slog.String("error", err.Error()))
			return
		}
		report.Services[name] = ServiceHealth{Healthy: true}
	}

	if o.erp != nil {
		probe("erp", o.erp.Health)
	}
	if o.b2b != nil {
		probe("b2b-portal", o.b2b.Health)
	}
	if o.b2c != nil {
		probe("b2c-ecommerce", o.b2c.Health)
	}

	if o.hub != nil {
		report.Hub = o.hub.Stats()
	}
	if o.deadLetter != nil {
		if n, err := o.deadLetter.Count(ctx); err == nil {
			report.DeadLetters = n
		}
	}

	o.mu.Lock()
	o.lastHealth = report
	o.mu.Unlock()
	return report
}

// statusPayload is the /status response body.
type statusPayload struct {
	Health          *HealthReport  `json:"health"`
	LastSync        *SyncReport    `json:"lastSync,omitempty"`
	ConflictHistory map[string]int `json:"conflictHistory,omitempty"`
}

// Routes returns the operational HTTP surface: /health re-probes the
// connectors, /status reports the last known snapshots. statusAuth, when
// not nil, guards /status; /health stays open for probes.
func (o *Orchestrator) Routes(statusAuth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		report := o.CheckHealth(req.Context())

		code := http.StatusOK
		if report.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	})

	status := r.With()
	if statusAuth != nil {
		status = r.With(statusAuth)
	}
	status.Get("/status", func(w http.ResponseWriter, req *http.Request) {
		o.mu.RLock()
		payload := statusPayload{
			Health:   o.lastHealth,
			LastSync: o.lastSync,
		}
		o.mu.RUnlock()

		if o.hub != nil && payload.Health == nil {
			payload.Health = &HealthReport{Status: "unknown", Hub: o.hub.Stats()}
		}
		if o.history != nil {
			payload.ConflictHistory = o.history.HistorySizes()
		}
		writeJSON(w, http.StatusOK, payload)
	})

	return r
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
