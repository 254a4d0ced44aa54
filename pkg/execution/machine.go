package execution

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/stackrelay/stackrelay/pkg/callback"
	"github.com/stackrelay/stackrelay/pkg/cloud"
	"github.com/stackrelay/stackrelay/pkg/lifecycle"
	"github.com/stackrelay/stackrelay/pkg/outputs"
	"github.com/stackrelay/stackrelay/pkg/stores"
	"github.com/stackrelay/stackrelay/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// Defaults applied when the corresponding Config field is zero.
const (
	DefaultBuildTimeout = 1 * time.Hour
	DefaultPollInterval = 15 * time.Second

	// callbackTimeout bounds the delivery of the terminal callback, which
	// runs on a fresh context because the execution deadline may already
	// have expired.
	callbackTimeout = 30 * time.Second

	// maxPollFailures is the number of consecutive status-poll failures
	// tolerated before the execution is declared failed.
	maxPollFailures = 5
)

// Config holds the injected configuration for the execution machine.
type Config struct {
	// BuildTimeout bounds the whole execution, from build submission to the
	// terminal phase. An execution that exceeds it fails with a timeout.
	BuildTimeout time.Duration

	// PollInterval is the delay between executor status polls.
	PollInterval time.Duration
}

// Machine runs build executions asynchronously. It implements
// lifecycle.Launcher: Launch accepts an execution and returns immediately,
// and the machine guarantees exactly one terminal callback per execution.
type Machine struct {
	cfg       Config
	executor  cloud.BuildExecutor
	collector *outputs.Collector
	reporter  *callback.Reporter
	store     stores.Store
	metrics   *telemetry.Metrics
	tracer    *telemetry.Tracer
	log       *telemetry.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewMachine creates an execution machine. The store may be nil; journaling
// is best-effort and never affects the execution outcome.
func NewMachine(
	cfg Config,
	executor cloud.BuildExecutor,
	collector *outputs.Collector,
	reporter *callback.Reporter,
	store stores.Store,
	metrics *telemetry.Metrics,
	tracer *telemetry.Tracer,
	log *telemetry.Logger,
) *Machine {
	if cfg.BuildTimeout <= 0 {
		cfg.BuildTimeout = DefaultBuildTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Machine{
		cfg:       cfg,
		executor:  executor,
		collector: collector,
		reporter:  reporter,
		store:     store,
		metrics:   metrics,
		tracer:    tracer,
		log:       log.NewComponentLogger("execution"),
	}
}

// Launch accepts an execution and runs it asynchronously. The returned error
// covers acceptance only; the execution's outcome is reported through its
// terminal callback.
func (m *Machine) Launch(ctx context.Context, spec lifecycle.ExecutionSpec) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("execution machine is shut down")
	}
	m.wg.Add(1)
	m.mu.Unlock()

	if m.store != nil {
		exec := &stores.Execution{
			Name:        spec.Name,
			RequestID:   spec.RequestID,
			RequestType: string(spec.RequestType),
			StackID:     spec.StackID,
			Status:      stores.ExecutionStatusPending,
			StartedAt:   time.Now().UTC(),
		}
		if err := m.store.CreateExecution(ctx, exec); err != nil {
			m.log.WithExecution(spec.Name).WithError(err).Debug("Failed to journal execution")
		}
	}

	go m.run(spec)
	return nil
}

// Shutdown stops accepting new executions and waits for in-flight ones to
// finish or for the context to expire.
func (m *Machine) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run drives one execution through the state machine. The execution runs on
// its own deadline, detached from the request that launched it.
func (m *Machine) run(spec lifecycle.ExecutionSpec) {
	defer m.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.BuildTimeout)
	defer cancel()

	if m.tracer != nil {
		var span trace.Span
		ctx, span = m.tracer.StartExecutionSpan(ctx, spec.Name)
		defer span.End()
	}

	log := m.log.WithExecution(spec.Name).WithRequestID(spec.RequestID)
	start := time.Now()
	if m.metrics != nil {
		m.metrics.RecordExecutionStarted()
	}

	m.transition(ctx, spec, StateStartBuild, "submitting build")
	buildID, err := m.executor.Start(ctx, spec.Env)
	if err != nil {
		startErr := lifecycle.NewPermanentError("failed to start build", err).WithCode(lifecycle.ErrCodeExecutorFailed)
		log.WithError(startErr).Error("Build submission failed")
		m.handleError(spec, start, startErr.Error())
		return
	}

	log = log.WithField("build_id", buildID)
	log.Info("Build started")
	m.updateExecution(spec.Name, stores.ExecutionStatusRunning, &buildID, nil, nil)

	m.transition(ctx, spec, StateCheckStatus, "polling build status")
	phase, pollErr := m.poll(ctx, buildID, log)
	switch {
	case pollErr != nil:
		log.WithError(pollErr).Error("Build did not complete")
		m.handleError(spec, start, pollErr.Error())
	case phase == cloud.BuildSucceeded:
		m.success(ctx, spec, start, log)
	default:
		reason := fmt.Sprintf("build %s finished with status %s", buildID, phase)
		log.Warn("Build failed")
		m.fail(spec, start, reason)
	}
}

// poll checks the build status on every tick until the build reaches a
// terminal phase, too many consecutive polls fail, or the deadline expires.
func (m *Machine) poll(ctx context.Context, buildID string, log *telemetry.Logger) (cloud.BuildPhase, error) {
	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return "", lifecycle.NewTransientError(
				fmt.Sprintf("build did not complete within %s", m.cfg.BuildTimeout), ctx.Err(),
			).WithCode(lifecycle.ErrCodeTimeout)
		case <-ticker.C:
			phase, err := m.executor.Status(ctx, buildID)
			if err != nil {
				failures++
				if failures >= maxPollFailures {
					return "", lifecycle.NewTransientError("repeated build status poll failures", err).
						WithCode(lifecycle.ErrCodeExecutorFailed)
				}
				log.WithError(err).Warn("Build status poll failed")
				continue
			}
			failures = 0
			if phase.IsTerminal() {
				return phase, nil
			}
		}
	}
}

// success collects stack outputs and delivers the success callback.
func (m *Machine) success(ctx context.Context, spec lifecycle.ExecutionSpec, start time.Time, log *telemetry.Logger) {
	m.transition(ctx, spec, StateSuccess, "build succeeded")

	var collected map[string]string
	if m.collector != nil {
		collected = m.collector.Collect(ctx)
	}

	log.Info("Execution completed")
	m.complete(spec, start, callback.StatusSuccess, callback.BuildStatusCompleted, "", collected)
}

// fail delivers the failure callback for an executor-reported build failure.
func (m *Machine) fail(spec lifecycle.ExecutionSpec, start time.Time, reason string) {
	m.transitionDetached(spec, StateFail, reason)
	m.complete(spec, start, callback.StatusFailed, callback.BuildStatusFailed, reason, nil)
}

// handleError delivers the failure callback for a timeout or an executor
// error. It produces the same callback shape as fail, so the requester
// observes a uniform failure contract.
func (m *Machine) handleError(spec lifecycle.ExecutionSpec, start time.Time, reason string) {
	m.transitionDetached(spec, StateHandleError, reason)
	m.complete(spec, start, callback.StatusFailed, callback.BuildStatusFailed, reason, nil)
}

// complete delivers the single terminal callback and closes out the journal
// record and metrics. It runs on a fresh context because the execution
// deadline may already have expired.
func (m *Machine) complete(
	spec lifecycle.ExecutionSpec,
	start time.Time,
	status callback.Status,
	buildStatus callback.BuildStatus,
	reason string,
	collected map[string]string,
) {
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()

	payload := &callback.Payload{
		Status:             status,
		Reason:             reason,
		PhysicalResourceID: spec.PhysicalResourceID,
		StackID:            spec.StackID,
		RequestID:          spec.RequestID,
		LogicalResourceID:  spec.LogicalResourceID,
		Data:               callback.NewData(buildStatus, collected),
	}

	execStatus := stores.ExecutionStatusSucceeded
	var errMsg *string
	if status != callback.StatusSuccess {
		execStatus = stores.ExecutionStatusFailed
		errMsg = &reason
	}
	bs := string(buildStatus)
	m.updateExecution(spec.Name, execStatus, nil, &bs, errMsg)

	if m.metrics != nil {
		m.metrics.RecordExecutionCompleted(string(buildStatus), time.Since(start).Seconds())
	}

	if err := m.reporter.Report(ctx, spec.ResponseURL, payload); err != nil {
		m.log.WithExecution(spec.Name).WithError(err).Error("Failed to deliver completion callback")
		if m.metrics != nil {
			m.metrics.RecordCallbackFailure()
		}
		return
	}
	if m.metrics != nil {
		m.metrics.RecordCallback(string(status))
	}
}

// transition journals a state change, best-effort.
func (m *Machine) transition(ctx context.Context, spec lifecycle.ExecutionSpec, state State, msg string) {
	if m.store == nil {
		return
	}
	level := stores.EventLevelInfo
	if state == StateFail || state == StateHandleError {
		level = stores.EventLevelError
	}
	event := &stores.Event{
		ExecutionName: &spec.Name,
		RequestID:     spec.RequestID,
		Level:         level,
		Message:       string(state) + ": " + msg,
	}
	if err := m.store.AppendEvent(ctx, event); err != nil {
		m.log.WithExecution(spec.Name).WithError(err).Debug("Failed to journal state transition")
	}
}

// transitionDetached journals a state change on a fresh context, for terminal
// paths where the execution deadline may already have expired.
func (m *Machine) transitionDetached(spec lifecycle.ExecutionSpec, state State, msg string) {
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	m.transition(ctx, spec, state, msg)
}

// updateExecution updates the journal record, best-effort.
func (m *Machine) updateExecution(name string, status stores.ExecutionStatus, buildID, buildStatus, errMsg *string) {
	if m.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
	defer cancel()
	if err := m.store.UpdateExecution(ctx, name, status, buildID, buildStatus, errMsg); err != nil {
		m.log.WithField("execution", name).WithError(err).Debug("Failed to update execution record")
	}
}
