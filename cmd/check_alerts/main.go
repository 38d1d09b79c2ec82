package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/config"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/services"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/timeplus"
)

// Prints the recorded alerts with their policy and target resolved. Handy for
// eyeballing the gateway state without the HTTP API.
func main() {
	logrus.SetLevel(logrus.WarnLevel)

	configPath := flag.String("config", "", "path to config file")
	pendingOnly := flag.Bool("pending", false, "only show pending alerts")
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fleetService := services.NewFleetService(tpClient)

	var alerts []*models.Alert
	if *pendingOnly {
		alerts, err = fleetService.PendingAlerts(ctx)
	} else {
		alerts, err = fleetService.GetAlerts(ctx)
	}
	if err != nil {
		logrus.Fatalf("Failed to query alerts: %v", err)
	}

	if len(alerts) == 0 {
		fmt.Println("No alerts recorded.")
		return
	}

	policies, err := fleetService.GetPolicies(ctx)
	if err != nil {
		logrus.Fatalf("Failed to query policies: %v", err)
	}
	targets, err := fleetService.GetTargets(ctx)
	if err != nil {
		logrus.Fatalf("Failed to query targets: %v", err)
	}

	policyNames := make(map[string]string, len(policies))
	for _, policy := range policies {
		policyNames[policy.ID] = policy.Name
	}
	targetNames := make(map[string]string, len(targets))
	for _, target := range targets {
		targetNames[target.ID] = target.Name
	}

	fmt.Printf("%d alert(s):\n", len(alerts))
	for _, alert := range alerts {
		alert.PolicyName = policyNames[alert.PolicyID]
		alert.TargetName = targetNames[alert.TargetID]
		if alert.PolicyName == "" {
			alert.PolicyName = alert.PolicyID
		}
		if alert.TargetName == "" {
			alert.TargetName = alert.TargetID
		}
		fmt.Printf("  [%s] %s on %s (created %s, updated %s)\n",
			alert.Status,
			alert.PolicyName,
			alert.TargetName,
			alert.CreatedAt.Format(time.RFC3339),
			alert.UpdatedAt.Format(time.RFC3339))
	}
}
