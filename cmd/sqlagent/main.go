// sqlagent answers natural-language questions about a vehicles database by
// chaining four MCP tools.
//
// Usage:
//
//	sqlagent serve [--http addr]
//	sqlagent ask [question] [--server cmd | --endpoint url] [--timeout d]
//	sqlagent seed-demo <path>
//	sqlagent token [subject] [--ttl hours]
//	sqlagent version
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/sqlagent/internal/infra/config"
	"github.com/matiasleandrokruk/sqlagent/internal/infra/logging"
	"github.com/matiasleandrokruk/sqlagent/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(out, errOut)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, err) //nolint:errcheck
		return 1
	}
	return 0
}

// app carries what every subcommand shares: output streams and the loaded
// configuration.
type app struct {
	out, errOut io.Writer
	configPath  string
	envFile     string
	cfg         config.Config
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "sqlagent",
		Short: "Answer questions about a vehicles database through MCP tools",
		Long: `sqlagent runs a tool host exposing entity-extraction, query-builder,
query-executor and answer-synthesis over MCP, and a client that chains them
to turn a question into an answer.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.LoadFrom(a.configPath, a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, a.errOut)
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file; a missing file is ignored")

	root.AddCommand(
		a.serveCmd(),
		a.askCmd(),
		a.seedDemoCmd(),
		a.tokenCmd(),
		a.versionCmd(),
	)
	return root
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			_, err := fmt.Fprintln(a.out, version.String())
			return err
		},
	}
}
