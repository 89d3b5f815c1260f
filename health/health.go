// Package health provides component health reporting and the HTTP
// endpoint services mount for liveness probes.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// State is the coarse health of a component or service.
type State string

const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

// Status reports the health of one component at a point in time.
type Status struct {
	Component string    `json:"component"`
	State     State     `json:"state"`
	Message   string    `json:"message,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// NewHealthy reports a healthy component.
func NewHealthy(component string) Status {
	return Status{Component: component, State: StateHealthy, CheckedAt: time.Now().UTC()}
}

// NewDegraded reports a component that works but below par.
func NewDegraded(component, message string) Status {
	return Status{Component: component, State: StateDegraded, Message: message, CheckedAt: time.Now().UTC()}
}

// NewUnhealthy reports a failed component.
func NewUnhealthy(component, message string) Status {
	return Status{Component: component, State: StateUnhealthy, Message: message, CheckedAt: time.Now().UTC()}
}

// Aggregate folds component statuses into one service state: the worst
// component wins. No statuses means healthy.
func Aggregate(statuses ...Status) State {
	state := StateHealthy
	for _, s := range statuses {
		switch s.State {
		case StateUnhealthy:
			return StateUnhealthy
		case StateDegraded:
			state = StateDegraded
		}
	}
	return state
}

// Check produces the current health of one component. Checks must
// honor ctx and return promptly; a probe endpoint cannot hang.
type Check func(ctx context.Context) Status

// PingCheck adapts a Ping-style dependency (the status store, a broker
// connection) into a Check.
func PingCheck(component string, ping func(ctx context.Context) error) Check {
	return func(ctx context.Context) Status {
		if err := ping(ctx); err != nil {
			return NewUnhealthy(component, err.Error())
		}
		return NewHealthy(component)
	}
}

type response struct {
	Status     State    `json:"status"`
	Components []Status `json:"components,omitempty"`
}

// Handler serves the aggregate health of the given checks as JSON.
// Healthy and degraded return 200 so orchestrators do not restart a
// service that is still doing useful work; unhealthy returns 503.
func Handler(checks ...Check) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		statuses := make([]Status, 0, len(checks))
		for _, check := range checks {
			statuses = append(statuses, check(r.Context()))
		}
		state := Aggregate(statuses...)

		w.Header().Set("Content-Type", "application/json")
		if state == StateUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(response{Status: state, Components: statuses})
	})
}
