package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/poller"
)

// Orchestrator drives the monitoring loop: sweep the fleet for fresh status,
// run an evaluation cycle, then flush pending notifications. Cycles never
// overlap; a tick that arrives while one is running is skipped.
type Orchestrator struct {
	fleetService *FleetService
	poller       *poller.Poller
	alertManager *AlertManager
	dispatcher   *Dispatcher
	workers      int

	mu sync.Mutex
}

// NewOrchestrator creates a new orchestrator. workers bounds the number of
// concurrent target polls.
func NewOrchestrator(fleetService *FleetService, p *poller.Poller, am *AlertManager, d *Dispatcher, workers int) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		fleetService: fleetService,
		poller:       p,
		alertManager: am,
		dispatcher:   d,
		workers:      workers,
	}
}

// RunCycle executes one full sweep/evaluate/dispatch pass. Returns the
// evaluation summary, or an error when a previous cycle is still running or a
// stage failed outright.
func (o *Orchestrator) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !o.mu.TryLock() {
		return nil, fmt.Errorf("a cycle is already running")
	}
	defer o.mu.Unlock()

	started := time.Now()
	logrus.Info("Starting monitoring cycle")

	if err := o.sweep(ctx); err != nil {
		return nil, fmt.Errorf("sweep failed: %w", err)
	}

	result, err := o.alertManager.RunCycle(ctx)
	if err != nil {
		return nil, fmt.Errorf("evaluation failed: %w", err)
	}

	if _, err := o.dispatcher.Flush(ctx); err != nil {
		logrus.Errorf("Failed to flush notifications: %v", err)
	}

	logrus.Infof("Monitoring cycle finished in %s", time.Since(started).Round(time.Millisecond))
	return result, nil
}

// sweep polls every server concurrently, bounded by the worker count
func (o *Orchestrator) sweep(ctx context.Context) error {
	servers, err := o.fleetService.GetServers(ctx)
	if err != nil {
		return fmt.Errorf("failed to load servers: %w", err)
	}

	sem := make(chan struct{}, o.workers)
	var wg sync.WaitGroup
	for _, server := range servers {
		wg.Add(1)
		sem <- struct{}{}
		go func(server *models.Target) {
			defer wg.Done()
			defer func() { <-sem }()
			o.sweepServer(ctx, server)
		}(server)
	}
	wg.Wait()
	return nil
}

// sweepServer polls one server and, when it hosts instances, each instance.
// An unreachable server marks all its instances down without contacting them.
func (o *Orchestrator) sweepServer(ctx context.Context, server *models.Target) {
	record, err := o.poller.PollServer(ctx, server)
	if err != nil {
		logrus.Warnf("Skipping server %s: %v", server.Name, err)
		return
	}
	o.record(ctx, server, record)

	if server.Kind != models.KindB2 {
		return
	}

	instances, err := o.fleetService.GetInstances(ctx, server.ID)
	if err != nil {
		logrus.Errorf("Failed to load instances of %s: %v", server.Name, err)
		return
	}
	if len(instances) == 0 {
		return
	}

	if !record.Up {
		for _, instance := range instances {
			o.record(ctx, instance, o.poller.DownRecord(instance))
		}
		return
	}

	baseURL := o.poller.ManagementURL(server)
	if baseURL == "" {
		logrus.Warnf("Server %s has instances but no management access", server.Name)
		return
	}
	for _, instance := range instances {
		o.record(ctx, instance, o.poller.PollInstance(ctx, baseURL, instance))
	}
}

// record appends the status sample and updates the target's sync state
func (o *Orchestrator) record(ctx context.Context, target *models.Target, record *models.StatusRecord) {
	if err := o.fleetService.AppendStatus(ctx, record); err != nil {
		logrus.Errorf("Failed to record status for %s: %v", target.Name, err)
		return
	}
	if err := o.fleetService.MarkTargetSynced(ctx, target, record.Up, record.CreatedAt); err != nil {
		logrus.Errorf("Failed to update sync state for %s: %v", target.Name, err)
	}
}

// PollTarget polls a single target on demand and records the result. Servers
// are polled directly; instances are polled through their parent server.
func (o *Orchestrator) PollTarget(ctx context.Context, id string) (*models.StatusRecord, error) {
	target, err := o.fleetService.GetTarget(ctx, id)
	if err != nil {
		return nil, err
	}

	var record *models.StatusRecord
	if target.Kind == models.KindInstance {
		parent, err := o.fleetService.GetTarget(ctx, target.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent server: %w", err)
		}
		baseURL := o.poller.ManagementURL(parent)
		if baseURL == "" {
			return nil, poller.ErrNoManagementAccess
		}
		record = o.poller.PollInstance(ctx, baseURL, target)
	} else {
		record, err = o.poller.PollServer(ctx, target)
		if err != nil {
			return nil, err
		}
	}

	o.record(ctx, target, record)
	return record, nil
}

// SeedStatus forges a status record for a target without polling it. Used by
// tooling to exercise policies against synthetic data.
func (o *Orchestrator) SeedStatus(ctx context.Context, targetID string, up bool, payload map[string]interface{}) (*models.StatusRecord, error) {
	target, err := o.fleetService.GetTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	record := &models.StatusRecord{
		ID:        uuid.New().String(),
		TargetID:  target.ID,
		Up:        up,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
	o.record(ctx, target, record)
	return record, nil
}
