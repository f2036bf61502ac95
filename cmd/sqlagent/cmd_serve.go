package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/sqlagent/internal/domain/nl2sql"
	"github.com/matiasleandrokruk/sqlagent/internal/domain/tool"
	"github.com/matiasleandrokruk/sqlagent/internal/infra/config"
	"github.com/matiasleandrokruk/sqlagent/internal/infra/llm"
	"github.com/matiasleandrokruk/sqlagent/internal/infra/logging"
	"github.com/matiasleandrokruk/sqlagent/internal/mcp/host"
	"github.com/matiasleandrokruk/sqlagent/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	var httpAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tool host over stdio, or streamable HTTP with --http",
		Long: `Without --http the host speaks MCP on stdin/stdout, which is how "sqlagent ask"
spawns it. The stdio host exits when its parent process goes away.

With --http the host serves the streamable transport on /mcp and a health
check on /health. Set SQLAGENT_JWT_SECRET to require bearer tokens.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			router, err := llm.NewRouterFromConfig(a.cfg)
			if err != nil {
				return err
			}
			reasoner, err := router.Route(cmd.Context())
			if err != nil {
				return err
			}
			// An unreachable model fails the first tool call, not startup.
			if err := router.HealthCheck(cmd.Context()); err != nil {
				logging.New("serve").Warn("llm provider unhealthy", slog.String("error", err.Error()))
			}
			registry, err := buildRegistry(a.cfg, reasoner)
			if err != nil {
				return err
			}
			srv := host.NewServer(registry)

			if !cmd.Flags().Changed("http") {
				return srv.RunStdio(cmd.Context())
			}
			if httpAddr == "" {
				httpAddr = a.cfg.HTTPAddr
			}
			httpCfg := server.DefaultConfig()
			httpCfg.Addr = httpAddr
			httpCfg.JWTSecret = []byte(a.cfg.JWTSecret)
			httpCfg.Health = router.HealthCheck
			return server.NewServer(srv.HTTPHandler(), httpCfg).Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address (empty uses SQLAGENT_HTTP_ADDR)")
	return cmd
}

// buildRegistry wires the four built-in tools to their services. All tools
// share one reasoner; each may use its own model.
func buildRegistry(cfg config.Config, reasoner nl2sql.Reasoner) (*tool.ToolRegistry, error) {
	registry := tool.NewToolRegistry()
	err := tool.RegisterBuiltInExecutors(registry, tool.BuiltinServices{
		Extractor:   nl2sql.NewEntityExtractor(reasoner, cfg.DataDictPath, cfg.ExtractionModel),
		Builder:     nl2sql.NewQueryBuilder(reasoner, cfg.QueryModel),
		Runner:      nl2sql.NewQueryRunner(cfg.DBPath),
		Synthesizer: nl2sql.NewAnswerSynthesizer(reasoner, cfg.SynthesisModel),
	})
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}
	logging.New("serve").Debug("tools registered",
		slog.String("db_path", cfg.DBPath),
		slog.String("data_dict_path", cfg.DataDictPath),
	)
	return registry, nil
}
