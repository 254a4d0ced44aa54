package stores

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	store, err := NewSQLiteStore(Config{Path: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("NewSQLiteStore() error: %v", err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error: %v", err)
	}
	return store
}

func testExecution(name string) *Execution {
	return &Execution{
		Name:        name,
		RequestID:   "req-001",
		RequestType: "Create",
		StackID:     "arn:aws:cloudformation:us-east-1:123456789012:stack/workforce-safety/1a2b3c",
		Status:      ExecutionStatusPending,
	}
}

func TestNewSQLiteStoreRequiresPath(t *testing.T) {
	if _, err := NewSQLiteStore(Config{}); err == nil {
		t.Error("empty path should be rejected")
	}
}

func TestExecutionLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateExecution(ctx, testExecution("deploy-req-001")); err != nil {
		t.Fatalf("CreateExecution() error: %v", err)
	}

	got, err := store.GetExecution(ctx, "deploy-req-001")
	if err != nil {
		t.Fatalf("GetExecution() error: %v", err)
	}
	if got.Status != ExecutionStatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
	if got.CompletedAt != nil {
		t.Error("new execution should not be completed")
	}
	if got.CreatedAt.IsZero() || got.StartedAt.IsZero() {
		t.Error("timestamps should be stamped on create")
	}

	buildID := "build-1"
	if err := store.UpdateExecution(ctx, "deploy-req-001", ExecutionStatusRunning, &buildID, nil, nil); err != nil {
		t.Fatalf("UpdateExecution() error: %v", err)
	}

	got, err = store.GetExecution(ctx, "deploy-req-001")
	if err != nil {
		t.Fatalf("GetExecution() error: %v", err)
	}
	if got.Status != ExecutionStatusRunning {
		t.Errorf("status = %s, want running", got.Status)
	}
	if got.BuildID == nil || *got.BuildID != "build-1" {
		t.Errorf("build id = %v, want build-1", got.BuildID)
	}
	if got.CompletedAt != nil {
		t.Error("running execution should not be completed")
	}

	buildStatus := "COMPLETED"
	if err := store.UpdateExecution(ctx, "deploy-req-001", ExecutionStatusSucceeded, nil, &buildStatus, nil); err != nil {
		t.Fatalf("UpdateExecution() error: %v", err)
	}

	got, err = store.GetExecution(ctx, "deploy-req-001")
	if err != nil {
		t.Fatalf("GetExecution() error: %v", err)
	}
	if got.Status != ExecutionStatusSucceeded {
		t.Errorf("status = %s, want succeeded", got.Status)
	}
	if got.BuildID == nil || *got.BuildID != "build-1" {
		t.Error("terminal update must not clear the build id")
	}
	if got.BuildStatus == nil || *got.BuildStatus != "COMPLETED" {
		t.Errorf("build status = %v", got.BuildStatus)
	}
	if got.CompletedAt == nil {
		t.Error("terminal status should stamp completed_at")
	}
}

func TestGetExecutionNotFound(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetExecution(context.Background(), "absent"); err == nil {
		t.Error("missing execution should be an error")
	}
}

func TestUpdateExecutionNotFound(t *testing.T) {
	store := newTestStore(t)
	if err := store.UpdateExecution(context.Background(), "absent", ExecutionStatusRunning, nil, nil, nil); err == nil {
		t.Error("updating a missing execution should be an error")
	}
}

func TestListExecutionsOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"deploy-a", "deploy-b", "deploy-c"} {
		exec := testExecution(name)
		if err := store.CreateExecution(ctx, exec); err != nil {
			t.Fatalf("CreateExecution(%s) error: %v", name, err)
		}
	}

	execs, err := store.ListExecutions(ctx, 2, 0)
	if err != nil {
		t.Fatalf("ListExecutions() error: %v", err)
	}
	if len(execs) != 2 {
		t.Fatalf("expected 2 executions, got %d", len(execs))
	}
}

func TestEventJournal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	name := "deploy-req-001"
	if err := store.CreateExecution(ctx, testExecution(name)); err != nil {
		t.Fatalf("CreateExecution() error: %v", err)
	}

	messages := []string{"start_build: submitting build", "check_status: polling build status", "success: build succeeded"}
	for _, msg := range messages {
		event := &Event{
			ExecutionName: &name,
			RequestID:     "req-001",
			Level:         EventLevelInfo,
			Message:       msg,
		}
		if err := store.AppendEvent(ctx, event); err != nil {
			t.Fatalf("AppendEvent() error: %v", err)
		}
		if event.ID == 0 {
			t.Error("AppendEvent should populate the event id")
		}
	}

	events, err := store.GetEvents(ctx, "req-001", 10)
	if err != nil {
		t.Fatalf("GetEvents() error: %v", err)
	}
	if len(events) != len(messages) {
		t.Fatalf("expected %d events, got %d", len(messages), len(events))
	}
	for i, e := range events {
		if e.Message != messages[i] {
			t.Errorf("event %d = %q, want %q (oldest first)", i, e.Message, messages[i])
		}
	}

	// Events without an execution are valid (request-level journal entries).
	if err := store.AppendEvent(ctx, &Event{RequestID: "req-002", Level: EventLevelWarning, Message: "orphan"}); err != nil {
		t.Errorf("request-level event should be accepted: %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	store := newTestStore(t)
	if err := store.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error: %v", err)
	}

	uninitialized := &SQLiteStore{}
	if err := uninitialized.HealthCheck(context.Background()); err == nil {
		t.Error("uninitialized store should fail the health check")
	}
}
