package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Simulates a fleet host's management API: /status for the host itself and
// /instance/status for hosted instances. Payloads are randomized around
// configurable baselines so alert policies can be exercised end to end
// without real hardware.
//
// SIM_PORT        port to listen on (default 8000)
// SIM_RAM_BASE    baseline RAM usage percentage (default 40)
// SIM_SPIKE_AFTER every Nth request reports a resource spike, 0 disables (default 0)
func main() {
	logrus.SetLevel(logrus.InfoLevel)

	port := getEnv("SIM_PORT", "8000")
	ramBase, _ := strconv.Atoi(getEnv("SIM_RAM_BASE", "40"))
	spikeAfter, _ := strconv.Atoi(getEnv("SIM_SPIKE_AFTER", "0"))

	var requests int64

	spiking := func() bool {
		n := atomic.AddInt64(&requests, 1)
		return spikeAfter > 0 && n%int64(spikeAfter) == 0
	}

	http.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		payload := hostStatus(ramBase, spiking())
		writeResult(w, payload)
		logrus.Infof("Served host status to %s", r.RemoteAddr)
	})

	http.HandleFunc("/instance/status", func(w http.ResponseWriter, r *http.Request) {
		instance := r.URL.Query().Get("instance")
		if instance == "" {
			http.Error(w, `{"error":"missing instance parameter"}`, http.StatusBadRequest)
			return
		}
		payload := instanceStatus(spiking())
		writeResult(w, payload)
		logrus.Infof("Served status of instance %s to %s", instance, r.RemoteAddr)
	})

	logrus.Infof("Fleet host simulator listening on :%s (ram base %d%%, spike every %d requests)",
		port, ramBase, spikeAfter)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		logrus.Fatalf("Simulator failed: %v", err)
	}
}

// hostStatus builds a plausible b2 host status tree
func hostStatus(ramBase int, spike bool) map[string]interface{} {
	ram := jitterPct(ramBase)
	cpu := jitterPct(25)
	if spike {
		ram = 95 + rand.Intn(5)
		cpu = 90 + rand.Intn(10)
	}

	return map[string]interface{}{
		"state": map[string]interface{}{
			"up": true,
		},
		"instant": map[string]interface{}{
			"total_proc": 120 + rand.Intn(60),
			"ram_use":    fmt.Sprintf("%d%%", ram),
			"cpu_use":    fmt.Sprintf("%d%%", cpu),
			"dsk_use":    fmt.Sprintf("%d%%", jitterPct(55)),
			"dsk_free":   float64(40+rand.Intn(20)) * 1e9,
			"mysql_mem":  fmt.Sprintf("%d%%", jitterPct(12)),
			"mysql_proc": 8 + rand.Intn(6),
			"apache_mem": fmt.Sprintf("%d%%", jitterPct(9)),
			"apache_proc": 10 + rand.Intn(8),
			"nginx_mem":  fmt.Sprintf("%d%%", jitterPct(4)),
			"nginx_proc": 2 + rand.Intn(3),
		},
		"stats": map[string]interface{}{
			"net": map[string]interface{}{
				"rx": float64(rand.Intn(2_000_000)),
				"tx": float64(rand.Intn(1_000_000)),
			},
		},
	}
}

// instanceStatus builds a plausible hosted-instance status tree
func instanceStatus(spike bool) map[string]interface{} {
	maintenance := false
	if spike {
		maintenance = true
	}
	return map[string]interface{}{
		"state": map[string]interface{}{
			"up":          true,
			"maintenance": maintenance,
		},
		"instant": map[string]interface{}{
			"ram_use": fmt.Sprintf("%d%%", jitterPct(20)),
			"cpu_use": fmt.Sprintf("%d%%", jitterPct(10)),
		},
	}
}

// writeResult wraps the payload the way fleet hosts do
func writeResult(w http.ResponseWriter, payload map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"result": payload}); err != nil {
		logrus.Errorf("Failed to encode status payload: %v", err)
	}
}

func jitterPct(base int) int {
	value := base - 5 + rand.Intn(11)
	if value < 0 {
		value = 0
	}
	if value > 100 {
		value = 100
	}
	return value
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
