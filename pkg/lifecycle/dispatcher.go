package lifecycle

import (
	"context"
	"errors"
	"strings"

	"github.com/stackrelay/stackrelay/pkg/callback"
	"github.com/stackrelay/stackrelay/pkg/cloud"
	"github.com/stackrelay/stackrelay/pkg/stores"
	"github.com/stackrelay/stackrelay/pkg/telemetry"
	"go.opentelemetry.io/otel/trace"
)

// ExecutionSpec describes one build execution to be launched. The dispatcher
// resolves all identifiers before launch so that the execution can report its
// terminal callback without access to the original request.
type ExecutionSpec struct {
	// Name is the deterministic execution name derived from the request.
	Name string `json:"name"`

	// RequestID identifies the originating lifecycle request.
	RequestID string `json:"request_id"`

	// RequestType is the originating request type (Create or Update).
	RequestType RequestType `json:"request_type"`

	// StackID is the owning stack ARN, echoed in the callback.
	StackID string `json:"stack_id"`

	// LogicalResourceID is echoed in the callback.
	LogicalResourceID string `json:"logical_resource_id"`

	// PhysicalResourceID is the resolved stable instance identifier.
	PhysicalResourceID string `json:"physical_resource_id"`

	// ResponseURL is the endpoint the terminal callback is delivered to.
	ResponseURL string `json:"response_url"`

	// Env are the environment overrides for the build executor.
	Env map[string]string `json:"env,omitempty"`
}

// Launcher starts build executions. Launch returns once the execution is
// accepted; completion is reported later by the execution itself, never by
// the dispatcher.
type Launcher interface {
	Launch(ctx context.Context, spec ExecutionSpec) error
}

// Config holds the injected configuration for the dispatcher.
type Config struct {
	// ProvisionedStack is the name of the application stack that executions
	// provision, Delete tears down, and output collection reads from.
	ProvisionedStack string

	// ExecutionPrefix prefixes deterministic execution names.
	ExecutionPrefix string
}

// Dispatcher receives lifecycle requests and guarantees exactly one terminal
// callback per request: immediately for no-ops, teardowns, and launch
// failures, or delegated to the launched execution otherwise.
type Dispatcher struct {
	cfg      Config
	detector *Detector
	stacks   cloud.StackQuery
	launcher Launcher
	reporter *callback.Reporter
	store    stores.Store
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	log      *telemetry.Logger
}

// NewDispatcher creates a dispatcher. The store may be nil; journaling is
// best-effort and never affects the dispatched outcome.
func NewDispatcher(
	cfg Config,
	detector *Detector,
	stacks cloud.StackQuery,
	launcher Launcher,
	reporter *callback.Reporter,
	store stores.Store,
	metrics *telemetry.Metrics,
	tracer *telemetry.Tracer,
	log *telemetry.Logger,
) *Dispatcher {
	if cfg.ExecutionPrefix == "" {
		cfg.ExecutionPrefix = "deploy"
	}
	if detector == nil {
		detector = NewDetector(nil)
	}
	return &Dispatcher{
		cfg:      cfg,
		detector: detector,
		stacks:   stacks,
		launcher: launcher,
		reporter: reporter,
		store:    store,
		metrics:  metrics,
		tracer:   tracer,
		log:      log.NewComponentLogger("dispatcher"),
	}
}

// Dispatch handles one lifecycle request. Every path funnels into exactly one
// callback; the returned error reports callback delivery failure, for which
// there is no further recourse beyond the requester's own timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) error {
	if err := req.Validate(); err != nil {
		if req.ResponseURL == "" {
			// Nowhere to report to; surface the validation error to the caller.
			return err
		}
		return d.respond(ctx, req, callback.StatusFailed, callback.BuildStatusFailed, err.Error(), nil)
	}

	var span trace.Span
	if d.tracer != nil {
		ctx, span = d.tracer.StartDispatchSpan(ctx, string(req.RequestType), req.RequestID)
		defer span.End()
	}

	log := d.log.WithRequestID(req.RequestID).WithField("request_type", string(req.RequestType))
	log.Info("Dispatching lifecycle request")

	var err error
	switch req.RequestType {
	case RequestDelete:
		err = d.handleDelete(ctx, req, log)
	default:
		err = d.handleProvision(ctx, req, log)
	}
	if span != nil {
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
	}
	return err
}

// handleProvision handles Create and Update requests.
func (d *Dispatcher) handleProvision(ctx context.Context, req *Request, log *telemetry.Logger) error {
	if !d.detector.Decide(req.RequestType, req.OldResourceProperties, req.ResourceProperties) {
		log.Info("No relevant parameter changes, skipping rebuild")
		d.journal(ctx, req, nil, stores.EventLevelInfo, "rebuild skipped: projected parameters unchanged")
		return d.respond(ctx, req, callback.StatusSuccess, callback.BuildStatusSkipped, "", nil)
	}

	spec := ExecutionSpec{
		Name:               d.executionName(req),
		RequestID:          req.RequestID,
		RequestType:        req.RequestType,
		StackID:            req.StackID,
		LogicalResourceID:  req.LogicalResourceID,
		PhysicalResourceID: d.physicalResourceID(req),
		ResponseURL:        req.ResponseURL,
		Env:                req.BuildEnv(),
	}

	if err := d.launcher.Launch(ctx, spec); err != nil {
		launchErr := NewPermanentError("failed to start execution", err).WithCode(ErrCodeLaunchFailed)
		log.WithError(launchErr).Error("Execution launch failed")
		d.journal(ctx, req, &spec.Name, stores.EventLevelError, "execution launch failed: "+err.Error())
		return d.respond(ctx, req, callback.StatusFailed, callback.BuildStatusFailed, launchErr.Error(), nil)
	}

	log.WithExecution(spec.Name).Info("Execution launched")
	d.journal(ctx, req, &spec.Name, stores.EventLevelInfo, "execution launched")
	if d.metrics != nil {
		d.metrics.RecordDispatch(string(req.RequestType), "STARTED")
	}
	return nil
}

// handleDelete handles Delete requests. The cleanup-vs-teardown decision
// inspects the owning stack's status at the moment the Delete is processed;
// this is a best-effort heuristic, inherently racy if the status changes
// between the check and the teardown call.
func (d *Dispatcher) handleDelete(ctx context.Context, req *Request, log *telemetry.Logger) error {
	owning := req.OwningStackName()

	desc, err := d.stacks.Describe(ctx, owning)
	switch {
	case err == nil && isCleanupInProgress(desc.Status):
		log.WithStack(owning).Infof("Owning stack is in %s, treating delete as update cleanup", desc.Status)
		d.journal(ctx, req, nil, stores.EventLevelInfo, "delete skipped: owning stack cleanup in progress")
		return d.respond(ctx, req, callback.StatusSuccess, callback.BuildStatusCleanupSkipped, "", nil)
	case err != nil && !errors.Is(err, cloud.ErrStackNotFound):
		// The heuristic could not run; fall through to the teardown.
		log.WithStack(owning).WithError(err).Warn("Could not inspect owning stack status")
	}

	if err := d.stacks.Delete(ctx, d.cfg.ProvisionedStack); err != nil {
		if !errors.Is(err, cloud.ErrStackNotFound) {
			teardownErr := NewTransientError("failed to tear down provisioned stack", err).WithCode(ErrCodeTeardownFailed)
			log.WithStack(d.cfg.ProvisionedStack).WithError(teardownErr).Error("Teardown failed")
			d.journal(ctx, req, nil, stores.EventLevelError, "teardown failed: "+err.Error())
			return d.respond(ctx, req, callback.StatusFailed, callback.BuildStatusFailed, teardownErr.Error(), nil)
		}
		// Already gone: delete is idempotent.
		log.WithStack(d.cfg.ProvisionedStack).Info("Provisioned stack already absent")
	}

	d.journal(ctx, req, nil, stores.EventLevelInfo, "provisioned stack deleted")
	return d.respond(ctx, req, callback.StatusSuccess, callback.BuildStatusDeleted, "", nil)
}

// respond sends the single terminal callback for a request handled directly
// by the dispatcher.
func (d *Dispatcher) respond(
	ctx context.Context,
	req *Request,
	status callback.Status,
	buildStatus callback.BuildStatus,
	reason string,
	outputs map[string]string,
) error {
	payload := &callback.Payload{
		Status:             status,
		Reason:             reason,
		PhysicalResourceID: d.physicalResourceID(req),
		StackID:            req.StackID,
		RequestID:          req.RequestID,
		LogicalResourceID:  req.LogicalResourceID,
		Data:               callback.NewData(buildStatus, outputs),
	}

	if d.metrics != nil {
		d.metrics.RecordDispatch(string(req.RequestType), string(buildStatus))
	}

	if err := d.reporter.Report(ctx, req.ResponseURL, payload); err != nil {
		if d.metrics != nil {
			d.metrics.RecordCallbackFailure()
		}
		d.journal(ctx, req, nil, stores.EventLevelError, "callback delivery failed: "+err.Error())
		return NewTransientError("failed to deliver callback", err).WithCode(ErrCodeCallbackFailed)
	}

	if d.metrics != nil {
		d.metrics.RecordCallback(string(status))
	}
	return nil
}

// executionName derives the deterministic execution name for a request.
func (d *Dispatcher) executionName(req *Request) string {
	return d.cfg.ExecutionPrefix + "-" + req.RequestID
}

// physicalResourceID resolves the stable instance identifier: the one the
// requester already knows, or a deterministic first-Create value.
func (d *Dispatcher) physicalResourceID(req *Request) string {
	if req.PhysicalResourceID != "" {
		return req.PhysicalResourceID
	}
	return d.cfg.ProvisionedStack + "-" + req.LogicalResourceID
}

// journal records an event best-effort; failures are logged and dropped.
func (d *Dispatcher) journal(ctx context.Context, req *Request, execName *string, level stores.EventLevel, msg string) {
	if d.store == nil {
		return
	}
	event := &stores.Event{
		ExecutionName: execName,
		RequestID:     req.RequestID,
		Level:         level,
		Message:       msg,
	}
	if err := d.store.AppendEvent(ctx, event); err != nil {
		d.log.WithError(err).Debug("Failed to journal event")
	}
}

// isCleanupInProgress reports whether a stack status string indicates the
// cleanup phase of a concurrent update (e.g. UPDATE_COMPLETE_CLEANUP_IN_PROGRESS).
func isCleanupInProgress(status string) bool {
	return strings.HasSuffix(status, "CLEANUP_IN_PROGRESS")
}
