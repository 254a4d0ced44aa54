package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/stackrelay/stackrelay/pkg/lifecycle"
)

func newDispatchCommand() *cobra.Command {
	var (
		requestFile string
		wait        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Dispatch a single lifecycle request",
		Long: `Read one lifecycle request from a file or stdin, dispatch it, and wait
for any launched execution to finish before exiting.

Useful for local testing and for environments that deliver requests
through a queue consumer instead of the HTTP server.`,
		Example: `  # Dispatch a request from a file
  stackrelay dispatch --request create.json

  # Dispatch from stdin
  cat request.json | stackrelay dispatch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var (
				data []byte
				err  error
			)
			if requestFile == "" || requestFile == "-" {
				data, err = io.ReadAll(os.Stdin)
			} else {
				data, err = os.ReadFile(requestFile)
			}
			if err != nil {
				return fmt.Errorf("failed to read request: %w", err)
			}

			var req lifecycle.Request
			if err := json.Unmarshal(data, &req); err != nil {
				return fmt.Errorf("failed to parse request: %w", err)
			}
			// Locally crafted requests may omit the request ID.
			if req.RequestID == "" {
				req.RequestID = uuid.NewString()
			}

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}

			if err := rt.dispatcher.Dispatch(ctx, &req); err != nil {
				return err
			}

			// Block until the launched execution, if any, has completed.
			waitCtx, cancel := context.WithTimeout(ctx, wait)
			defer cancel()
			rt.shutdown(waitCtx)
			return nil
		},
	}

	cmd.Flags().StringVarP(&requestFile, "request", "r", "", "request JSON file path (default: stdin)")
	cmd.Flags().DurationVar(&wait, "wait", 90*time.Minute, "maximum time to wait for the execution to finish")

	return cmd
}
