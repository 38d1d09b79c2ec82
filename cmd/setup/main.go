package main

import (
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/config"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/services"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/timeplus"
)

// Creates the gateway streams and optionally seeds a small demo fleet with a
// high-resource-usage policy, so a fresh install has something to monitor.
func main() {
	logrus.SetLevel(logrus.InfoLevel)

	configPath := flag.String("config", "", "path to config file")
	seed := flag.Bool("seed", false, "seed a demo fleet and alert policy")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	tpClient, err := timeplus.NewClient(&cfg.Timeplus)
	if err != nil {
		logrus.Fatalf("Failed to connect to Timeplus: %v", err)
	}
	defer tpClient.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	logrus.Info("Setting up gateway streams")
	if err := tpClient.SetupStreams(ctx); err != nil {
		logrus.Fatalf("Failed to set up streams: %v", err)
	}
	logrus.Info("Streams ready")

	if !*seed {
		return
	}

	fleetService := services.NewFleetService(tpClient)

	server := &models.Target{
		ID:   "srv-demo-1",
		Name: "demo-host.example.org",
		Kind: models.KindB2,
		Accesses: []models.Access{
			{Type: "http", URL: "http://localhost:8000", Port: "8000"},
		},
	}
	instance := &models.Target{
		ID:       "inst-demo-1",
		Name:     "demo-instance",
		Kind:     models.KindInstance,
		ParentID: server.ID,
	}
	for _, target := range []*models.Target{server, instance} {
		if err := fleetService.SaveTarget(ctx, target); err != nil {
			logrus.Fatalf("Failed to seed target %s: %v", target.Name, err)
		}
		logrus.Infof("Seeded target %s (%s)", target.Name, target.Kind)
	}

	triggers := []*models.AlertTrigger{
		{
			ID:         "trg-ram-high",
			Scope:      models.ScopeAll,
			Key:        "instant.ram_use",
			Operator:   models.OperatorGt,
			Value:      "90%",
			Repetition: 3,
		},
		{
			ID:         "trg-host-down",
			Scope:      models.ScopeAll,
			Key:        "state.up",
			Operator:   models.OperatorEq,
			Value:      "false",
			Repetition: 2,
		},
	}
	for _, trigger := range triggers {
		if err := fleetService.SaveTrigger(ctx, trigger); err != nil {
			logrus.Fatalf("Failed to seed trigger %s: %v", trigger.ID, err)
		}
		logrus.Infof("Seeded trigger %s", trigger.Name())
	}

	admin := &models.User{ID: "usr-admin", Login: "ops@example.org"}
	if err := fleetService.SaveUser(ctx, admin); err != nil {
		logrus.Fatalf("Failed to seed user: %v", err)
	}
	onCall := &models.Group{ID: "grp-oncall", Name: "on-call", UserIDs: []string{admin.ID}}
	if err := fleetService.SaveGroup(ctx, onCall); err != nil {
		logrus.Fatalf("Failed to seed group: %v", err)
	}

	policies := []*models.AlertPolicy{
		{
			ID:         "pol-ram-high",
			Name:       "High memory usage",
			Scope:      models.ScopeAll,
			TriggerIDs: []string{"trg-ram-high"},
			GroupIDs:   []string{onCall.ID},
		},
		{
			ID:         "pol-host-down",
			Name:       "Host unreachable",
			Scope:      models.ScopeAll,
			TriggerIDs: []string{"trg-host-down"},
			UserIDs:    []string{admin.ID},
		},
	}
	for _, policy := range policies {
		if err := fleetService.SavePolicy(ctx, policy); err != nil {
			logrus.Fatalf("Failed to seed policy %s: %v", policy.Name, err)
		}
		logrus.Infof("Seeded policy %s", policy.Name)
	}

	logrus.Info("Demo fleet seeded")
}
