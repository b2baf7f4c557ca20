package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

func Healthz(service string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"service": service, "status": "ok"})
	}
}

// ReadinessCheck is one dependency probed by /readyz. A zero Timeout means
// two seconds.
type ReadinessCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

type checkResult struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

type readiness struct {
	Service string        `json:"service"`
	Status  string        `json:"status"`
	Checks  []checkResult `json:"checks"`
	// Error is the first failure observed.
	Error string `json:"error,omitempty"`
}

// ReadyzWithChecks probes every dependency concurrently and answers 503 when
// any probe fails. A failure does not cancel the other probes. Results keep
// the order the checks were given in.
func ReadyzWithChecks(service string, checks ...ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := make([]checkResult, len(checks))
		var g errgroup.Group
		for i, check := range checks {
			g.Go(func() error {
				var err error
				results[i], err = probe(r.Context(), check)
				return err
			})
		}
		err := g.Wait()

		body := readiness{Service: service, Status: "ready", Checks: results}
		status := http.StatusOK
		if err != nil {
			body.Status = "not_ready"
			body.Error = err.Error()
			status = http.StatusServiceUnavailable
		}
		WriteJSON(w, status, body)
	}
}

func probe(ctx context.Context, check ReadinessCheck) (checkResult, error) {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := check.Check(ctx)
	res := checkResult{Name: check.Name, Status: "ok", Duration: time.Since(start).Round(time.Millisecond).String()}
	if err != nil {
		res.Status = "fail"
		res.Error = err.Error()
		return res, fmt.Errorf("%s: %w", check.Name, err)
	}
	return res, nil
}
