package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newExecutionsCommand() *cobra.Command {
	var (
		limit      int
		offset     int
		jsonOutput bool
		requestID  string
	)

	cmd := &cobra.Command{
		Use:   "executions",
		Short: "List recorded build executions",
		Long: `List build executions from the journal, newest first.

With --request-id, the journal events of that request are printed
instead of the execution list.`,
		Example: `  # List the most recent executions
  stackrelay executions

  # Show the event trail of one request
  stackrelay executions --request-id 6d9a1b2c`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if rt.store != nil {
					_ = rt.store.Close()
				}
			}()

			if rt.store == nil {
				return fmt.Errorf("no journal configured (store.path is empty)")
			}

			if requestID != "" {
				events, err := rt.store.GetEvents(ctx, requestID, limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return json.NewEncoder(os.Stdout).Encode(events)
				}
				w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "TIMESTAMP\tLEVEL\tEXECUTION\tMESSAGE")
				for _, e := range events {
					name := ""
					if e.ExecutionName != nil {
						name = *e.ExecutionName
					}
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Level, name, e.Message)
				}
				return w.Flush()
			}

			execs, err := rt.store.ListExecutions(ctx, limit, offset)
			if err != nil {
				return err
			}
			if jsonOutput {
				return json.NewEncoder(os.Stdout).Encode(execs)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tREQUEST\tTYPE\tSTATUS\tBUILD STATUS\tSTARTED")
			for _, e := range execs {
				buildStatus := ""
				if e.BuildStatus != nil {
					buildStatus = *e.BuildStatus
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.Name, e.RequestID, e.RequestType, e.Status, buildStatus,
					e.StartedAt.Format("2006-01-02 15:04:05"))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of rows")
	cmd.Flags().IntVar(&offset, "offset", 0, "rows to skip")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	cmd.Flags().StringVar(&requestID, "request-id", "", "show events for a request instead")

	return cmd
}
