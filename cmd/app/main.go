package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/ansuz/internal"
	pkgconfig "github.com/starford/ansuz/pkg/config"
)

var errQueryFailed = errors.New("query failed")

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	path := cmd.String("config")
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func query(ctx context.Context, cmd *cli.Command) error {
	text := cmd.Args().First()
	if text == "" {
		return errors.New("usage: ansuz query \"TABLE ...\"")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	resp, err := internal.Query(ctx, text, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	if err := printJSON(os.Stdout, resp); err != nil {
		return err
	}
	if !resp.Success {
		return errQueryFailed
	}
	return nil
}

func reindex(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	report, err := internal.Reindex(ctx, internal.WithConfig(cfg), internal.WithLogOutput(os.Stderr))
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, report)
}

func mcp(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:   "ansuz",
		Usage:  "Metadata queries (TABLE and LIST) over a folder of Markdown notes",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and keep the index in step with the vault",
				Action: serve,
			},
			{
				Name:      "query",
				Usage:     "Build the index once and print the result of a query as JSON",
				ArgsUsage: "\"TABLE|LIST ...\"",
				Action:    query,
			},
			{
				Name:   "reindex",
				Usage:  "Reconcile the SQLite index with the vault and rebuild the metadata index",
				Action: reindex,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the query tools over MCP on stdio",
				Action: mcp,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if !errors.Is(err, errQueryFailed) {
			slog.Error("application error", slog.String("error", err.Error()))
		}
		os.Exit(1)
	}
}
