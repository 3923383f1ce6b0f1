package metrics

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

// Component names reported by the controller
const (
	ComponentCluster      = "cluster"
	ComponentWorkloadLoop = "workload-loop"
	ComponentNodeLoop     = "node-loop"
	ComponentNotifier     = "notifier"
	ComponentLedger       = "ledger"
)

// criticalComponents gate readiness: the cluster must be reachable and both
// loops must have completed a cycle. The notifier and ledger only show up in
// the component view.
var criticalComponents = []string{ComponentCluster, ComponentWorkloadLoop, ComponentNodeLoop}

// HealthStatus is the body served by /ready and /components
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
}

type componentState struct {
	healthy bool
	message string
}

func (c componentState) describe() string {
	if c.healthy {
		return "healthy"
	}
	return "unhealthy: " + c.message
}

// registry holds the last reported state of every component
type registry struct {
	mu         sync.RWMutex
	components map[string]componentState
	startTime  time.Time
	version    string
}

func newRegistry() *registry {
	return &registry{
		components: make(map[string]componentState),
		startTime:  time.Now(),
	}
}

var health = newRegistry()

// SetVersion sets the version string reported by /ready and /components
func SetVersion(version string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.version = version
}

// UpdateComponent records the current state of a component. The first call
// for a name registers it.
func UpdateComponent(name string, healthy bool, message string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.components[name] = componentState{healthy: healthy, message: message}
}

func (r *registry) status(status, message string, components map[string]string) HealthStatus {
	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    r.version,
		Uptime:     time.Since(r.startTime).String(),
	}
}

// GetComponents reports every registered component. The overall status is
// "degraded" as soon as one of them is unhealthy.
func GetComponents() HealthStatus {
	health.mu.RLock()
	defer health.mu.RUnlock()

	names := make([]string, 0, len(health.components))
	for name := range health.components {
		names = append(names, name)
	}
	sort.Strings(names)

	status := "healthy"
	var unhealthy []string
	components := make(map[string]string, len(names))
	for _, name := range names {
		comp := health.components[name]
		components[name] = comp.describe()
		if !comp.healthy {
			status = "degraded"
			unhealthy = append(unhealthy, name)
		}
	}

	message := ""
	if len(unhealthy) > 0 {
		message = "unhealthy: " + strings.Join(unhealthy, ", ")
	}
	return health.status(status, message, components)
}

// GetReadiness reports whether every critical component is registered and healthy
func GetReadiness() HealthStatus {
	health.mu.RLock()
	defer health.mu.RUnlock()

	status := "ready"
	message := ""
	components := make(map[string]string, len(criticalComponents))
	for _, name := range criticalComponents {
		comp, ok := health.components[name]
		switch {
		case !ok:
			status = "not_ready"
			message = "waiting for " + name + " initialization"
			components[name] = "not registered"
		case !comp.healthy:
			status = "not_ready"
			message = "waiting for " + name
			components[name] = "not ready: " + comp.message
		default:
			components[name] = "ready"
		}
	}
	return health.status(status, message, components)
}

func writeStatus(w http.ResponseWriter, ok bool, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(body)
}

// ComponentsHandler serves the per-component view; 503 while any component is unhealthy
func ComponentsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := GetComponents()
		writeStatus(w, s.Status == "healthy", s)
	}
}

// ReadyHandler serves /ready; 503 until every critical component is healthy
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := GetReadiness()
		writeStatus(w, s.Status == "ready", s)
	}
}

// LivenessHandler returns 200 for as long as the process can serve requests
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, true, map[string]string{
			"status": "alive",
			"uptime": time.Since(health.startTime).String(),
		})
	}
}
