package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/stackrelay/stackrelay/pkg/telemetry"
)

// Reporter delivers completion payloads to response endpoints. It performs a
// single synchronous PUT per call and never retries: duplicate delivery would
// violate the at-most-once completion-signal contract, and the requester's own
// request timeout governs any retry at that layer.
type Reporter struct {
	client *http.Client
	log    *telemetry.Logger
}

// NewReporter creates a reporter. A nil client falls back to a default client
// with a conservative transport timeout.
func NewReporter(client *http.Client, log *telemetry.Logger) *Reporter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Reporter{
		client: client,
		log:    log.NewComponentLogger("callback"),
	}
}

// Report serializes the payload and PUTs it to the endpoint. Transport and
// non-2xx failures are returned to the caller, which has no further recourse.
func (r *Reporter) Report(ctx context.Context, endpoint string, payload *Payload) error {
	if err := payload.Status.Validate(); err != nil {
		return fmt.Errorf("refusing to report payload: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode callback payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	r.log.WithField("request_id", payload.RequestID).
		WithField("status", string(payload.Status)).
		WithField("build_status", payload.Data[DataKeyBuildStatus]).
		Debug("Delivering completion callback")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to deliver callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("callback endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
