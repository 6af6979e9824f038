package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/PratikDhanave/analytics-capture/internal/config"
	"github.com/PratikDhanave/analytics-capture/pkg/sinkclient"
)

// clientFlags are shared by the commands that talk to a running sink.
type clientFlags struct {
	sink   string
	apiKey string
}

// register adds --sink and --api-key, defaulting to CAPTURE_SINK_URL and
// CAPTURE_API_KEY.
func (f *clientFlags) register(cmd *cobra.Command) {
	env := config.LoadClient()
	cmd.Flags().StringVar(&f.sink, "sink", env.SinkURL, "sink base URL")
	cmd.Flags().StringVar(&f.apiKey, "api-key", env.APIKey, "X-API-Key for the sink")
}

func (f *clientFlags) client(timeout time.Duration) *sinkclient.Client {
	cfg := sinkclient.NewConfig(f.sink, f.apiKey)
	if timeout > 0 {
		cfg.Timeout = timeout + 10*time.Second
	}
	return sinkclient.New(cfg)
}

// NewSessionCmd groups session management subcommands.
func NewSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage capture sessions on a running sink",
	}

	var create clientFlags
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Start a session and print its id and ingest URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := create.client(0)
			sess, err := c.CreateSession(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]string{
				"session_id": sess.SessionID,
				"ingest_url": c.IngestURL(sess),
			})
		},
	}
	create.register(createCmd)

	var events clientFlags
	eventsCmd := &cobra.Command{
		Use:   "events SESSION_ID",
		Short: "Print captured events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			evs, err := events.client(0).Events(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, evs)
		},
	}
	events.register(eventsCmd)

	var clear clientFlags
	clearCmd := &cobra.Command{
		Use:   "clear SESSION_ID",
		Short: "Drop captured events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return clear.client(0).ClearEvents(cmd.Context(), args[0])
		},
	}
	clear.register(clearCmd)

	var del clientFlags
	deleteCmd := &cobra.Command{
		Use:   "delete SESSION_ID",
		Short: "End a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return del.client(0).DeleteSession(cmd.Context(), args[0])
		},
	}
	del.register(deleteCmd)

	cmd.AddCommand(createCmd, eventsCmd, clearCmd, deleteCmd)
	return cmd
}

// NewAssertCmd runs one assertion against a session. It exits non-zero with the
// diagnostic message when the assertion fails.
func NewAssertCmd() *cobra.Command {
	var (
		flags     clientFlags
		session   string
		event     string
		props     string
		not       bool
		count     int
		timeout   time.Duration
		pollEvery time.Duration
	)

	cmd := &cobra.Command{
		Use:   "assert",
		Short: "Assert that an event fired (or did not) in a session",
		Example: `  capture-sink assert --session $ID --event signup --props '{"plan":"pro"}'
  capture-sink assert --session $ID --event error_occurred --not --timeout 2s
  capture-sink assert --session $ID --count 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req := sinkclient.AssertRequest{
				EventName:      event,
				TimeoutMS:      sinkclient.WaitMS(timeout),
				PollIntervalMS: sinkclient.WaitMS(pollEvery),
			}
			switch {
			case cmd.Flags().Changed("count"):
				req.Kind = sinkclient.KindCount
				if count >= 0 {
					req.Count = &count
				}
			case not:
				req.Kind = sinkclient.KindNotFired
			default:
				req.Kind = sinkclient.KindFired
			}
			if props != "" {
				if err := json.Unmarshal([]byte(props), &req.Properties); err != nil {
					return fmt.Errorf("--props must be a JSON object: %w", err)
				}
			}

			res, err := flags.client(timeout).Assert(cmd.Context(), session, req)
			if err != nil {
				return err
			}
			if !res.Pass {
				return errors.New(res.Message)
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&session, "session", "", "session id")
	cmd.Flags().StringVar(&event, "event", "", "event name")
	cmd.Flags().StringVar(&props, "props", "", "expected properties as a JSON object (subset match)")
	cmd.Flags().BoolVar(&not, "not", false, "assert the event does not fire")
	cmd.Flags().IntVar(&count, "count", -1, "assert the exact number of captured events (-1: at least one)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait (0: sink default)")
	cmd.Flags().DurationVar(&pollEvery, "poll-interval", 0, "how often to rescan (0: sink default)")
	_ = cmd.MarkFlagRequired("session")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
