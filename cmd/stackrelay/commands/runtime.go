package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stackrelay/stackrelay/pkg/callback"
	awscloud "github.com/stackrelay/stackrelay/pkg/cloud/aws"
	"github.com/stackrelay/stackrelay/pkg/config"
	"github.com/stackrelay/stackrelay/pkg/execution"
	"github.com/stackrelay/stackrelay/pkg/lifecycle"
	"github.com/stackrelay/stackrelay/pkg/outputs"
	"github.com/stackrelay/stackrelay/pkg/stores"
	"github.com/stackrelay/stackrelay/pkg/telemetry"
)

// runtime holds the wired service components shared by the serve and
// dispatch commands.
type runtime struct {
	cfg        *config.Config
	log        *telemetry.Logger
	metrics    *telemetry.Metrics
	tracer     *telemetry.Tracer
	store      stores.Store
	dispatcher *lifecycle.Dispatcher
	machine    *execution.Machine
}

// newRuntime loads configuration and wires the orchestration core.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	log, err := telemetry.NewLogger(cfg.Telemetry.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	metrics := telemetry.NewMetrics(cfg.Telemetry.Metrics)
	tracer, err := telemetry.NewTracer(
		cfg.Telemetry.Tracing,
		cfg.Telemetry.ServiceName,
		cfg.Telemetry.ServiceVersion,
		cfg.Telemetry.Environment,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	var store stores.Store
	if cfg.Store.Path != "" {
		sqlStore, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Store.Path})
		if err != nil {
			return nil, fmt.Errorf("failed to create store: %w", err)
		}
		if err := sqlStore.Init(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize store: %w", err)
		}
		if err := sqlStore.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("failed to migrate store: %w", err)
		}
		store = sqlStore
	}

	awsCfg, err := awscloud.LoadConfig(ctx, cfg.Executor.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to load cloud configuration: %w", err)
	}

	executor := awscloud.NewCodeBuildExecutor(awsCfg, cfg.Executor.Project)
	stacks := awscloud.NewCloudFormationQuery(awsCfg)
	reporter := callback.NewReporter(&http.Client{Timeout: 30 * time.Second}, log)
	collector := outputs.NewCollector(stacks, cfg.Stack.Provisioned, cfg.Stack.FrontendURLKey, log)

	machine := execution.NewMachine(
		execution.Config{
			BuildTimeout: cfg.Executor.BuildTimeout,
			PollInterval: cfg.Executor.PollInterval,
		},
		executor, collector, reporter, store, metrics, tracer, log,
	)

	dispatcher := lifecycle.NewDispatcher(
		lifecycle.Config{
			ProvisionedStack: cfg.Stack.Provisioned,
			ExecutionPrefix:  cfg.Dispatcher.ExecutionPrefix,
		},
		lifecycle.NewDetector(cfg.Dispatcher.ProjectionKeys),
		stacks, machine, reporter, store, metrics, tracer, log,
	)

	return &runtime{
		cfg:        cfg,
		log:        log,
		metrics:    metrics,
		tracer:     tracer,
		store:      store,
		dispatcher: dispatcher,
		machine:    machine,
	}, nil
}

// shutdown drains in-flight executions and flushes telemetry.
func (r *runtime) shutdown(ctx context.Context) {
	if err := r.machine.Shutdown(ctx); err != nil {
		r.log.WithError(err).Warn("Executions still in flight at shutdown")
	}
	if err := r.tracer.Shutdown(ctx); err != nil {
		r.log.WithError(err).Warn("Failed to flush traces")
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			r.log.WithError(err).Warn("Failed to close store")
		}
	}
}
