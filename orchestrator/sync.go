package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ServiceResult is the outcome of one connector's pull during a full sync.
type ServiceResult struct {
	Counts map[string]int `json:"counts"`
	Error  string         `json:"error,omitempty"`
}

// SyncReport aggregates one full-sync run. A failing connector never stops
// the others.
type SyncReport struct {
	StartedAt time.Time                `json:"startedAt"`
	Duration  time.Duration            `json:"duration"`
	Services  map[string]ServiceResult `json:"services"`
}

// FullSync pulls every entity type from every configured connector
// concurrently and returns the per-service outcome.
func (o *Orchestrator) FullSync(ctx context.Context) *SyncReport {
	report := &SyncReport{
		StartedAt: time.Now(),
		Services:  make(map[string]ServiceResult),
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	record := func(name string, res ServiceResult) {
		mu.Lock()
		report.Services[name] = res
		mu.Unlock()
	}

	if o.erp != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record("erp", o.syncERP(ctx))
		}()
	}
	if o.b2b != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record("b2b-portal", o.syncB2B(ctx))
		}()
	}
	if o.b2c != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record("b2c-ecommerce", o.syncB2C(ctx))
		}()
	}
	wg.Wait()

	report.Duration = time.Since(report.StartedAt)

	failed := 0
	for name, res := range report.Services {
		if res.Error != "" {
			failed++
			o.logger.Warn("full sync: service failed",
				slog.String("service", name), slog.String("error", res.Error))
		}
	}
	o.logger.Info("full sync completed",
		slog.Duration("duration", report.Duration),
		slog.Int("services", len(report.Services)),
		slog.Int("failed", failed))

	o.mu.Lock()
	o.lastSync = report
	o.mu.Unlock()
	return report
}

// LastSync returns the most recent full-sync report, or nil before the
// first run.
func (o *Orchestrator) LastSync() *SyncReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastSync
}

func (o *Orchestrator) syncERP(ctx context.Context) ServiceResult {
	res := ServiceResult{Counts: make(map[string]int)}

	customers, err := o.erp.SyncCustomers(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Counts["customers"] = len(customers)

	products, err := o.erp.SyncProducts(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Counts["products"] = len(products)

	orders, err := o.erp.SyncOrders(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Counts["orders"] = len(orders)

	territories, err := o.erp.SyncTerritories(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Counts["territories"] = len(territories)

	prices, err := o.erp.SyncPrices(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Counts["prices"] = len(prices)

	return res
}

func (o *Orchestrator) syncB2B(ctx context.Context) ServiceResult {
	res := ServiceResult{Counts: make(map[string]int)}

	customers, err := o.b2b.SyncCustomers(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Counts["customers"] = len(customers)

	orders, err := o.b2b.SyncOrders(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Counts["orders"] = len(orders)

	return res
}

func (o *Orchestrator) syncB2C(ctx context.Context) ServiceResult {
	res := ServiceResult{Counts: make(map[string]int)}

	orders, err := o.b2c.SyncOrders(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Counts["orders"] = len(orders)

	products, err := o.b2c.SyncProducts(ctx)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Counts["products"] = len(products)

	return res
}
