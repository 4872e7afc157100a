package solverengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/depotfleet/sigec-fleet/internal/domain"
	"github.com/depotfleet/sigec-fleet/internal/infrastructure/circuitbreaker"
)

// RemoteEngine targets an external commercial optimization service over
// HTTP, guarded by a circuit breaker so repeated failures degrade fast
// rather than blocking every run on a timeout (§9).
type RemoteEngine struct {
	baseURL string
	token   string
	http    *circuitbreaker.HTTPClient
	log     *zap.Logger
}

// NewRemoteEngine builds a RemoteEngine. token is typically sourced from
// vault at startup (internal/adapter/vault.SecretManager.GetSolverEngineCredentials).
func NewRemoteEngine(baseURL, token string, log *zap.Logger) *RemoteEngine {
	return &RemoteEngine{
		baseURL: baseURL,
		token:   token,
		http:    circuitbreaker.NewHTTPClient(circuitbreaker.DefaultSettings("solver-engine"), log),
		log:     log,
	}
}

func (e *RemoteEngine) Name() string { return "remote" }

func (e *RemoteEngine) SolveAllocation(ctx context.Context, p AllocationProblem) (AllocationSolution, domain.SolveStatus, error) {
	var sol AllocationSolution
	status, err := e.call(ctx, "/v1/solve/allocation", p, &sol)
	return sol, status, err
}

func (e *RemoteEngine) SolveSchedule(ctx context.Context, p ScheduleProblem) (ScheduleSolution, domain.SolveStatus, error) {
	var sol ScheduleSolution
	status, err := e.call(ctx, "/v1/solve/schedule", p, &sol)
	return sol, status, err
}

func (e *RemoteEngine) SolveUnified(ctx context.Context, p UnifiedProblem) (UnifiedSolution, domain.SolveStatus, error) {
	var sol UnifiedSolution
	status, err := e.call(ctx, "/v1/solve/unified", p, &sol)
	return sol, status, err
}

type engineResponse struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
}

func (e *RemoteEngine) call(ctx context.Context, path string, body, out interface{}) (domain.SolveStatus, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return domain.StatusInfeasible, fmt.Errorf("solverengine: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return domain.StatusInfeasible, fmt.Errorf("solverengine: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return domain.StatusInfeasible, fmt.Errorf("solverengine: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.StatusInfeasible, fmt.Errorf("solverengine: read response: %w", err)
	}

	var er engineResponse
	if err := json.Unmarshal(data, &er); err != nil {
		return domain.StatusInfeasible, fmt.Errorf("solverengine: decode response: %w", err)
	}
	if err := json.Unmarshal(er.Result, out); err != nil {
		return domain.StatusInfeasible, fmt.Errorf("solverengine: decode result: %w", err)
	}

	switch er.Status {
	case "optimal":
		return domain.StatusOptimal, nil
	case "feasible":
		return domain.StatusFeasible, nil
	default:
		return domain.StatusInfeasible, nil
	}
}

// Healthz reports whether the remote engine currently answers, for the
// periodic probe that flips Capability's healthy flag.
func (e *RemoteEngine) Healthz(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	resp, err := e.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
