package services

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/mailer"
	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
)

// Dispatcher delivers pending alerts by email and transitions them to sent.
// Alerts whose delivery fails stay pending and are retried on the next flush.
type Dispatcher struct {
	fleetService *FleetService
	mailer       mailer.Mailer
}

// NewDispatcher creates a new notification dispatcher
func NewDispatcher(fleetService *FleetService, m mailer.Mailer) *Dispatcher {
	return &Dispatcher{fleetService: fleetService, mailer: m}
}

// Flush dispatches every pending alert. A failure on one alert is logged and
// does not block the others.
func (d *Dispatcher) Flush(ctx context.Context) (int, error) {
	pending, err := d.fleetService.PendingAlerts(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load pending alerts: %w", err)
	}

	sent := 0
	for _, alert := range pending {
		if err := d.dispatch(ctx, alert); err != nil {
			logrus.Errorf("Failed to dispatch alert %s: %v", alert.ID, err)
			continue
		}
		sent++
	}

	if len(pending) > 0 {
		logrus.Infof("Dispatched %d of %d pending alerts", sent, len(pending))
	}
	return sent, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, alert *models.Alert) error {
	policy, err := d.fleetService.GetPolicy(ctx, alert.PolicyID)
	if err != nil {
		return fmt.Errorf("failed to load policy: %w", err)
	}
	target, err := d.fleetService.GetTarget(ctx, alert.TargetID)
	if err != nil {
		return fmt.Errorf("failed to load target: %w", err)
	}

	recipients, err := d.fleetService.ResolveRecipients(ctx, policy)
	if err != nil {
		return fmt.Errorf("failed to resolve recipients: %w", err)
	}
	if len(recipients) == 0 {
		// nobody to notify, close the alert so it does not pile up
		logrus.Warnf("Alert %s for policy %s has no recipients, marking sent", alert.ID, policy.Name)
		return d.fleetService.MarkAlertSent(ctx, alert)
	}

	parentName := ""
	if target.Kind == models.KindInstance && target.ParentID != "" {
		parent, err := d.fleetService.GetTarget(ctx, target.ParentID)
		if err != nil {
			logrus.Warnf("Failed to load parent server of %s: %v", target.Name, err)
		} else {
			parentName = parent.Name
		}
	}

	subject := buildSubject(policy, target, parentName)
	body := buildBody(policy, target)

	// one message per address; a shared To: header would leak the recipient
	// list across accounts
	delivered := 0
	var lastErr error
	for _, recipient := range recipients {
		if err := d.mailer.Send([]string{recipient}, subject, body); err != nil {
			logrus.Errorf("Failed to send alert %s to %s: %v", alert.ID, recipient, err)
			lastErr = err
			continue
		}
		delivered++
	}
	if lastErr != nil {
		// the alert stays pending so the next flush retries delivery
		return fmt.Errorf("delivered to %d of %d recipients: %w", delivered, len(recipients), lastErr)
	}

	if err := d.fleetService.MarkAlertSent(ctx, alert); err != nil {
		return fmt.Errorf("mail sent but failed to mark alert: %w", err)
	}

	logrus.Infof("Alert %s sent to %d recipients (policy %s, target %s)",
		alert.ID, len(recipients), policy.Name, target.Name)
	return nil
}

func buildSubject(policy *models.AlertPolicy, target *models.Target, parentName string) string {
	if target.Kind == models.KindInstance {
		if parentName != "" {
			return fmt.Sprintf("Alert %q for instance %s (server %s)", policy.Name, target.Name, parentName)
		}
		return fmt.Sprintf("Alert %q for instance %s", policy.Name, target.Name)
	}
	return fmt.Sprintf("Alert %q for server %s", policy.Name, target.Name)
}

func buildBody(policy *models.AlertPolicy, target *models.Target) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("<p>Alert policy <strong>%s</strong> fired on <strong>%s</strong>.</p>",
		html.EscapeString(policy.Name), html.EscapeString(target.Name)))
	b.WriteString("<p>Matched conditions:</p><ul>")
	for _, trigger := range policy.Triggers {
		b.WriteString(fmt.Sprintf("<li>%s</li>", html.EscapeString(trigger.Name())))
	}
	b.WriteString("</ul>")
	return b.String()
}
