package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yesbabylon/fleet-alert-gateway/pkg/models"
)

func serverTarget(baseURL string) *models.Target {
	return &models.Target{
		ID:   "srv-1",
		Name: "host-1",
		Kind: models.KindB2,
		Accesses: []models.Access{
			{Type: "ssh", URL: "ssh://host-1", Port: "22"},
			{Type: "http", URL: baseURL, Port: "8000"},
		},
	}
}

func TestPollServerUnwrapsResultEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"result":{"instant":{"ram_use":"75%"}}}`))
	}))
	defer ts.Close()

	p := New("8000", 2*time.Second)
	record, err := p.PollServer(context.Background(), serverTarget(ts.URL))

	assert.NoError(t, err)
	assert.True(t, record.Up)
	assert.Equal(t, "srv-1", record.TargetID)
	instant, ok := record.Payload["instant"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, "75%", instant["ram_use"])

	// the reachability verdict is stamped into the payload
	state, ok := record.Payload["state"].(map[string]interface{})
	assert.True(t, ok)
	assert.Equal(t, true, state["up"])
}

func TestPollServerFlatBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"instant":{"cpu_use":"10%"}}`))
	}))
	defer ts.Close()

	p := New("8000", 2*time.Second)
	record, err := p.PollServer(context.Background(), serverTarget(ts.URL))

	assert.NoError(t, err)
	assert.True(t, record.Up)
	instant := record.Payload["instant"].(map[string]interface{})
	assert.Equal(t, "10%", instant["cpu_use"])
}

func TestPollServerNon2xxMeansDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	p := New("8000", 2*time.Second)
	record, err := p.PollServer(context.Background(), serverTarget(ts.URL))

	assert.NoError(t, err)
	assert.False(t, record.Up)
	state := record.Payload["state"].(map[string]interface{})
	assert.Equal(t, false, state["up"])
}

func TestPollServerMalformedBodyMeansDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>not json</html>`))
	}))
	defer ts.Close()

	p := New("8000", 2*time.Second)
	record, err := p.PollServer(context.Background(), serverTarget(ts.URL))

	assert.NoError(t, err)
	assert.False(t, record.Up)
}

func TestPollServerUnreachableMeansDown(t *testing.T) {
	target := serverTarget("http://127.0.0.1:1")

	p := New("8000", 500*time.Millisecond)
	record, err := p.PollServer(context.Background(), target)

	assert.NoError(t, err)
	assert.False(t, record.Up)
}

func TestPollServerNoManagementAccess(t *testing.T) {
	target := &models.Target{
		ID:   "srv-1",
		Name: "host-1",
		Kind: models.KindB2,
		Accesses: []models.Access{
			{Type: "ssh", URL: "ssh://host-1", Port: "22"},
			{Type: "http", URL: "http://host-1", Port: "443"},
		},
	}

	p := New("8000", 2*time.Second)
	record, err := p.PollServer(context.Background(), target)

	assert.Nil(t, record)
	assert.ErrorIs(t, err, ErrNoManagementAccess)
}

func TestManagementURLLastMatchWins(t *testing.T) {
	target := &models.Target{
		Accesses: []models.Access{
			{Type: "http", URL: "http://old", Port: "8000"},
			{Type: "https", URL: "https://new", Port: "8000"},
		},
	}

	p := New("8000", 2*time.Second)
	assert.Equal(t, "https://new", p.ManagementURL(target))
}

func TestPollInstanceQueryParameter(t *testing.T) {
	var gotInstance string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/status", r.URL.Path)
		gotInstance = r.URL.Query().Get("instance")
		w.Write([]byte(`{"result":{"state":{"maintenance":false}}}`))
	}))
	defer ts.Close()

	instance := &models.Target{
		ID:       "inst-1",
		Name:     "my shop",
		Kind:     models.KindInstance,
		ParentID: "srv-1",
	}

	p := New("8000", 2*time.Second)
	record := p.PollInstance(context.Background(), ts.URL, instance)

	assert.True(t, record.Up)
	assert.Equal(t, "inst-1", record.TargetID)
	// names with spaces survive the round trip
	assert.Equal(t, "my shop", gotInstance)
}

func TestPollInstanceFailureMeansDown(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	instance := &models.Target{ID: "inst-1", Name: "shop", Kind: models.KindInstance}

	p := New("8000", 2*time.Second)
	record := p.PollInstance(context.Background(), ts.URL, instance)

	assert.False(t, record.Up)
}

func TestDownRecord(t *testing.T) {
	instance := &models.Target{ID: "inst-1", Name: "shop", Kind: models.KindInstance}

	p := New("8000", 2*time.Second)
	record := p.DownRecord(instance)

	assert.False(t, record.Up)
	assert.Equal(t, "inst-1", record.TargetID)
	assert.NotEmpty(t, record.ID)
	state := record.Payload["state"].(map[string]interface{})
	assert.Equal(t, false, state["up"])
}
