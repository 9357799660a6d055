package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/connectivity"
)

// DocumentStorePinger is the slice of the store the checker needs
type DocumentStorePinger interface {
	Ping(ctx context.Context) error
}

// RemoteConnState reports the remote client's connection state
type RemoteConnState interface {
	State() connectivity.State
}

// HealthChecker provides liveness and readiness endpoints
type HealthChecker struct {
	store  DocumentStorePinger
	remote RemoteConnState
	logger *zap.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(store DocumentStorePinger, remote RemoteConnState, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		store:  store,
		remote: remote,
		logger: logger,
	}
}

// LivenessHandler handles liveness probe requests
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "alive",
		Timestamp: time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// ReadinessHandler handles readiness probe requests
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Error("Document store health check failed", zap.Error(err))
		checks["document_store"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["document_store"] = "healthy"
	}

	// The remote service is dialed lazily; idle and connecting states are
	// not failures, only a terminal shutdown is.
	state := h.remote.State()
	if state == connectivity.Shutdown {
		checks["provisioning_service"] = "unhealthy: connection shut down"
		allHealthy = false
	} else {
		checks["provisioning_service"] = "healthy: " + state.String()
	}

	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now().Unix(),
		Checks:    checks,
	}
	code := http.StatusOK
	if !allHealthy {
		status.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}
