package poller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
)

// ErrNoManagementAccess is returned when a target has no http/https access
// configured on the management port. This is a configuration gap, not an
// outage: no status record is produced for such a target.
var ErrNoManagementAccess = errors.New("no management API access configured")

// Poller queries the management API of fleet targets and normalizes the
// responses into status records. Reachability failures never surface as
// errors; they classify the target as down.
type Poller struct {
	client         *http.Client
	managementPort string
}

// New creates a poller using the given well-known management port and
// per-request timeout
func New(managementPort string, timeout time.Duration) *Poller {
	return &Poller{
		client:         &http.Client{Timeout: timeout},
		managementPort: managementPort,
	}
}

// ManagementURL resolves the base URL of a target's management API by
// scanning its accesses for an http/https entry on the management port.
// Returns an empty string when none is configured.
func (p *Poller) ManagementURL(target *models.Target) string {
	baseURL := ""
	for _, access := range target.Accesses {
		if (access.Type == "http" || access.Type == "https") && access.Port == p.managementPort {
			baseURL = access.URL
		}
	}
	return baseURL
}

// PollServer fetches the status of a server target. A transport failure,
// non-2xx response or malformed body yields an up=false record with an empty
// payload. The only error case is a missing management access.
func (p *Poller) PollServer(ctx context.Context, target *models.Target) (*models.StatusRecord, error) {
	baseURL := p.ManagementURL(target)
	if baseURL == "" {
		return nil, ErrNoManagementAccess
	}

	payload, err := p.fetchStatus(ctx, baseURL+"/status")
	if err != nil {
		logrus.Warnf("Server %s (%s) unreachable: %v", target.Name, target.ID, err)
		return downRecord(target), nil
	}

	return &models.StatusRecord{
		ID:        uuid.New().String(),
		TargetID:  target.ID,
		Up:        true,
		Payload:   withUpFlag(payload, true),
		CreatedAt: time.Now(),
	}, nil
}

// PollInstance fetches the status of one hosted instance through its parent
// server's management API. Like PollServer, failures classify the instance
// as down rather than erroring.
func (p *Poller) PollInstance(ctx context.Context, baseURL string, instance *models.Target) *models.StatusRecord {
	statusURL := fmt.Sprintf("%s/instance/status?instance=%s", baseURL, url.QueryEscape(instance.Name))

	payload, err := p.fetchStatus(ctx, statusURL)
	if err != nil {
		logrus.Warnf("Instance %s (%s) unreachable: %v", instance.Name, instance.ID, err)
		return downRecord(instance)
	}

	return &models.StatusRecord{
		ID:        uuid.New().String(),
		TargetID:  instance.ID,
		Up:        true,
		Payload:   withUpFlag(payload, true),
		CreatedAt: time.Now(),
	}
}

// DownRecord produces a synthetic up=false record without a network call.
// Used to cascade a parent server outage onto its instances.
func (p *Poller) DownRecord(target *models.Target) *models.StatusRecord {
	return downRecord(target)
}

func downRecord(target *models.Target) *models.StatusRecord {
	return &models.StatusRecord{
		ID:        uuid.New().String(),
		TargetID:  target.ID,
		Up:        false,
		Payload:   withUpFlag(map[string]interface{}{}, false),
		CreatedAt: time.Now(),
	}
}

// withUpFlag stamps the reachability verdict into the payload's state
// section, so "state.up" is always resolvable regardless of what the host
// reported
func withUpFlag(payload map[string]interface{}, up bool) map[string]interface{} {
	state, ok := payload["state"].(map[string]interface{})
	if !ok {
		state = map[string]interface{}{}
		payload["state"] = state
	}
	state["up"] = up
	return payload
}

// fetchStatus performs the HTTP request and decodes the JSON body. Hosts
// answer either with a flat object or with a top-level "result" wrapper.
func (p *Poller) fetchStatus(ctx context.Context, statusURL string) (map[string]interface{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, statusURL)
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("malformed status body: %w", err)
	}

	if wrapped, ok := payload["result"].(map[string]interface{}); ok {
		return wrapped, nil
	}
	return payload, nil
}
