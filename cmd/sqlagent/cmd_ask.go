package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/sqlagent/internal/domain/pipeline"
	"github.com/matiasleandrokruk/sqlagent/internal/infra/eventbus"
	"github.com/matiasleandrokruk/sqlagent/internal/infra/logging"
	"github.com/matiasleandrokruk/sqlagent/internal/mcp/client"
	pkgauth "github.com/matiasleandrokruk/sqlagent/pkg/auth"
)

const defaultQuestion = "What is the maximum base MSRP in King county?"

// askSubject names the caller in tokens minted by ask itself.
const askSubject = "sqlagent-ask"

func (a *app) askCmd() *cobra.Command {
	var (
		serverCmd string
		endpoint  string
		token     string
		timeout   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question through the four-tool pipeline",
		Long: `ask connects to a tool host, runs entity-extraction, query-builder,
query-executor and answer-synthesis in order, and prints the answer.

By default the host is this binary started as "sqlagent serve" over stdio.
Use --server to spawn a different command, or --endpoint to reach a running
streamable HTTP host.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := defaultQuestion
			if len(args) == 1 {
				question = args[0]
			}

			target, err := a.askTarget(serverCmd, endpoint, token)
			if err != nil {
				return err
			}
			session, err := client.Connect(cmd.Context(), target)
			if err != nil {
				return err
			}
			defer session.Close() //nolint:errcheck

			bus := eventbus.New()
			events := bus.Subscribe(pipeline.TopicStep)
			done := make(chan struct{})
			go logSteps(events, done)

			orch := pipeline.New(session, pipeline.WithTimeout(timeout), pipeline.WithEventBus(bus))
			answer := orch.Ask(cmd.Context(), question)

			bus.Unsubscribe(pipeline.TopicStep, events)
			<-done

			_, err = fmt.Fprintln(a.out, answer)
			return err
		},
	}
	cmd.Flags().StringVar(&serverCmd, "server", "", `command that starts a stdio tool host (default: this binary with "serve")`)
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "URL of a streamable HTTP tool host, e.g. http://127.0.0.1:8750/mcp")
	cmd.Flags().StringVar(&token, "token", "", "bearer token for --endpoint (default: minted from SQLAGENT_JWT_SECRET when set)")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "limit for the whole pipeline run; 0 disables it")
	cmd.MarkFlagsMutuallyExclusive("server", "endpoint")
	return cmd
}

func (a *app) askTarget(serverCmd, endpoint, token string) (client.Target, error) {
	if endpoint != "" {
		if token == "" && a.cfg.JWTSecret != "" {
			minted, err := pkgauth.GenerateJWT([]byte(a.cfg.JWTSecret), askSubject, time.Hour)
			if err != nil {
				return client.Target{}, err
			}
			token = minted
		}
		return client.Target{Endpoint: endpoint, BearerToken: token}, nil
	}

	var argv []string
	if serverCmd != "" {
		argv = strings.Fields(serverCmd)
	} else {
		exe, err := os.Executable()
		if err != nil {
			return client.Target{}, fmt.Errorf("locate sqlagent binary: %w", err)
		}
		argv = []string{exe, "serve"}
		if a.configPath != "" {
			argv = append(argv, "--config", a.configPath)
		}
		argv = append(argv, "--env-file", a.envFile)
	}
	if len(argv) == 0 {
		return client.Target{}, errors.New("--server is empty")
	}
	return client.Target{Command: argv[0], Args: argv[1:]}, nil
}

// logSteps logs pipeline progress until events is closed.
func logSteps(events <-chan eventbus.Event, done chan<- struct{}) {
	defer close(done)
	log := logging.New("ask")
	for evt := range events {
		step, ok := evt.Payload.(pipeline.StepEvent)
		if !ok {
			continue
		}
		attrs := []any{
			slog.String("step", step.Step.String()),
			slog.String("tool", step.Tool),
			slog.String("status", step.Status),
		}
		switch step.Status {
		case pipeline.StatusCompleted:
			attrs = append(attrs, slog.Int64("duration_ms", step.Duration.Milliseconds()), slog.Bool("error_marker", step.Marker))
		case pipeline.StatusFailed:
			attrs = append(attrs, slog.String("error", step.Err))
		}
		log.Info("pipeline step", attrs...)
	}
}
