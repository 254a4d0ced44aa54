package execution

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stackrelay/stackrelay/pkg/callback"
	"github.com/stackrelay/stackrelay/pkg/cloud"
	"github.com/stackrelay/stackrelay/pkg/lifecycle"
	"github.com/stackrelay/stackrelay/pkg/outputs"
	"github.com/stackrelay/stackrelay/pkg/telemetry"
)

// Mock executor for testing
type mockExecutor struct {
	mu         sync.Mutex
	startErr   error
	statusErr  error
	phases     []cloud.BuildPhase
	statusIdx  int
	startCalls int
}

func (m *mockExecutor) Start(ctx context.Context, env map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	if m.startErr != nil {
		return "", m.startErr
	}
	return "build-1", nil
}

func (m *mockExecutor) Status(ctx context.Context, handle string) (cloud.BuildPhase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return "", m.statusErr
	}
	if m.statusIdx < len(m.phases) {
		phase := m.phases[m.statusIdx]
		m.statusIdx++
		return phase, nil
	}
	return cloud.BuildInProgress, nil
}

// Mock stack query for output collection
type mockStackQuery struct {
	description *cloud.StackDescription
	err         error
}

func (m *mockStackQuery) Describe(ctx context.Context, stackName string) (*cloud.StackDescription, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.description, nil
}

func (m *mockStackQuery) Delete(ctx context.Context, stackName string) error {
	return nil
}

// callbackSink records payloads PUT to a test endpoint.
type callbackSink struct {
	mu       sync.Mutex
	payloads []callback.Payload
	server   *httptest.Server
}

func newCallbackSink(t *testing.T) *callbackSink {
	t.Helper()
	sink := &callbackSink{}
	sink.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p callback.Payload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("malformed callback payload: %v", err)
		}
		sink.mu.Lock()
		sink.payloads = append(sink.payloads, p)
		sink.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(sink.server.Close)
	return sink
}

func (s *callbackSink) received() []callback.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]callback.Payload{}, s.payloads...)
}

// waitForCallback polls until the sink has received a payload.
func (s *callbackSink) waitForCallback(t *testing.T) callback.Payload {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := s.received(); len(got) > 0 {
			return got[0]
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no callback received within deadline")
	return callback.Payload{}
}

func newTestMachine(executor cloud.BuildExecutor, stacks cloud.StackQuery, timeout time.Duration) *Machine {
	log := telemetry.NewNopLogger()
	return NewMachine(
		Config{BuildTimeout: timeout, PollInterval: 10 * time.Millisecond},
		executor,
		outputs.NewCollector(stacks, "workforce-app", "CloudfrontUrl", log),
		callback.NewReporter(nil, log),
		nil, nil, nil,
		log,
	)
}

func testSpec(sink *callbackSink) lifecycle.ExecutionSpec {
	return lifecycle.ExecutionSpec{
		Name:               "deploy-req-001",
		RequestID:          "req-001",
		RequestType:        lifecycle.RequestCreate,
		StackID:            "arn:aws:cloudformation:us-east-1:123456789012:stack/workforce-safety/1a2b3c",
		LogicalResourceID:  "DeploymentTrigger",
		PhysicalResourceID: "workforce-app-DeploymentTrigger",
		ResponseURL:        sink.server.URL,
		Env:                map[string]string{"LanguageCode": "en_US"},
	}
}

func TestMachineSuccessReportsCompletedWithOutputs(t *testing.T) {
	sink := newCallbackSink(t)
	executor := &mockExecutor{phases: []cloud.BuildPhase{cloud.BuildInProgress, cloud.BuildSucceeded}}
	stacks := &mockStackQuery{
		description: &cloud.StackDescription{
			Name:   "workforce-app",
			Status: "CREATE_COMPLETE",
			Outputs: map[string]string{
				"CloudfrontUrl": "https://d1234.cloudfront.net",
				"ApiEndpoint":   "https://api.example.com",
			},
		},
	}
	m := newTestMachine(executor, stacks, time.Minute)

	if err := m.Launch(context.Background(), testSpec(sink)); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}

	p := sink.waitForCallback(t)
	if p.Status != callback.StatusSuccess {
		t.Errorf("status = %s, want SUCCESS", p.Status)
	}
	if p.Data[callback.DataKeyBuildStatus] != string(callback.BuildStatusCompleted) {
		t.Errorf("build status = %q, want COMPLETED", p.Data[callback.DataKeyBuildStatus])
	}
	if p.Data[callback.DataKeyFrontendURL] != "https://d1234.cloudfront.net" {
		t.Errorf("FrontendUrl = %q, want the configured stack output", p.Data[callback.DataKeyFrontendURL])
	}
	if p.Data["ApiEndpoint"] != "https://api.example.com" {
		t.Errorf("stack outputs should be forwarded, got %v", p.Data)
	}
	if p.PhysicalResourceID != "workforce-app-DeploymentTrigger" {
		t.Errorf("physical resource id = %q", p.PhysicalResourceID)
	}
}

func TestMachineSuccessWithUnreadableOutputs(t *testing.T) {
	sink := newCallbackSink(t)
	executor := &mockExecutor{phases: []cloud.BuildPhase{cloud.BuildSucceeded}}
	stacks := &mockStackQuery{err: errors.New("throttled")}
	m := newTestMachine(executor, stacks, time.Minute)

	if err := m.Launch(context.Background(), testSpec(sink)); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}

	p := sink.waitForCallback(t)
	if p.Status != callback.StatusSuccess {
		t.Errorf("output collection failure must not fail the execution, got %s", p.Status)
	}
	if p.Data[callback.DataKeyFrontendURL] != "" {
		t.Errorf("FrontendUrl should default to empty, got %q", p.Data[callback.DataKeyFrontendURL])
	}
}

func TestMachineBuildFailureReportsFailed(t *testing.T) {
	sink := newCallbackSink(t)
	executor := &mockExecutor{phases: []cloud.BuildPhase{cloud.BuildFailed}}
	m := newTestMachine(executor, &mockStackQuery{}, time.Minute)

	if err := m.Launch(context.Background(), testSpec(sink)); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}

	p := sink.waitForCallback(t)
	if p.Status != callback.StatusFailed {
		t.Errorf("status = %s, want FAILED", p.Status)
	}
	if p.Data[callback.DataKeyBuildStatus] != string(callback.BuildStatusFailed) {
		t.Errorf("build status = %q, want FAILED", p.Data[callback.DataKeyBuildStatus])
	}
	if !strings.Contains(p.Reason, "build-1") {
		t.Errorf("reason should name the failed build, got %q", p.Reason)
	}
	if _, ok := p.Data[callback.DataKeyFrontendURL]; !ok {
		t.Error("FrontendUrl must be present on failure callbacks")
	}
}

func TestMachineStartFailureReportsFailed(t *testing.T) {
	sink := newCallbackSink(t)
	executor := &mockExecutor{startErr: errors.New("project not found")}
	m := newTestMachine(executor, &mockStackQuery{}, time.Minute)

	if err := m.Launch(context.Background(), testSpec(sink)); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}

	p := sink.waitForCallback(t)
	if p.Status != callback.StatusFailed {
		t.Errorf("status = %s, want FAILED", p.Status)
	}
	if !strings.Contains(p.Reason, "project not found") {
		t.Errorf("reason should carry the underlying error, got %q", p.Reason)
	}
}

func TestMachineTimeoutReportsFailed(t *testing.T) {
	sink := newCallbackSink(t)
	// Executor never leaves IN_PROGRESS.
	executor := &mockExecutor{}
	m := newTestMachine(executor, &mockStackQuery{}, 50*time.Millisecond)

	if err := m.Launch(context.Background(), testSpec(sink)); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}

	p := sink.waitForCallback(t)
	if p.Status != callback.StatusFailed {
		t.Errorf("status = %s, want FAILED", p.Status)
	}
	if p.Data[callback.DataKeyBuildStatus] != string(callback.BuildStatusFailed) {
		t.Errorf("timeout must produce the same failure shape, got %q", p.Data[callback.DataKeyBuildStatus])
	}
	if !strings.Contains(p.Reason, "did not complete") {
		t.Errorf("reason should mention the timeout, got %q", p.Reason)
	}

	// Exactly one terminal callback, even after the deadline fired.
	time.Sleep(50 * time.Millisecond)
	if got := sink.received(); len(got) != 1 {
		t.Errorf("expected exactly one callback, got %d", len(got))
	}
}

func TestMachinePersistentPollFailures(t *testing.T) {
	sink := newCallbackSink(t)
	executor := &mockExecutor{statusErr: errors.New("connection reset")}
	m := newTestMachine(executor, &mockStackQuery{}, time.Minute)

	if err := m.Launch(context.Background(), testSpec(sink)); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}

	p := sink.waitForCallback(t)
	if p.Status != callback.StatusFailed {
		t.Errorf("status = %s, want FAILED", p.Status)
	}
}

func TestMachineShutdownRejectsNewLaunches(t *testing.T) {
	sink := newCallbackSink(t)
	m := newTestMachine(&mockExecutor{phases: []cloud.BuildPhase{cloud.BuildSucceeded}}, &mockStackQuery{}, time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	if err := m.Launch(context.Background(), testSpec(sink)); err == nil {
		t.Error("Launch after Shutdown should fail")
	}
}

func TestMachineShutdownWaitsForInflight(t *testing.T) {
	sink := newCallbackSink(t)
	executor := &mockExecutor{phases: []cloud.BuildPhase{cloud.BuildInProgress, cloud.BuildSucceeded}}
	m := newTestMachine(executor, &mockStackQuery{description: &cloud.StackDescription{}}, time.Minute)

	if err := m.Launch(context.Background(), testSpec(sink)); err != nil {
		t.Fatalf("Launch() error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}

	if got := sink.received(); len(got) != 1 {
		t.Errorf("in-flight execution should complete before shutdown, got %d callbacks", len(got))
	}
}
