package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/takak2166/notionblog/internal/config"
	"github.com/takak2166/notionblog/internal/logger"
	cli "github.com/urfave/cli/v3"
)

// cfg is populated before any subcommand runs
var cfg config.Config

func loadConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error
	if cfg, err = config.Load(cmd.String("env")); err != nil {
		return ctx, err
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		return ctx, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return ctx, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            "notionblog",
		Usage:           "export a Notion posts database and serve it as a blog API",
		HideHelpCommand: true,
		Before:          loadConfig,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "env", Aliases: []string{"e"}, Value: ".env", Usage: "load environment from `FILE`"},
		},
		Commands: []*cli.Command{
			{
				Name:   "export",
				Usage:  "Fetches published posts from Notion into the local store",
				Action: runExport,
			},
			{
				Name:   "serve",
				Usage:  "Serves exported posts over HTTP",
				Action: runServe,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen on `PORT` (overrides PORT)"},
				},
			},
			{
				Name:      "outline",
				Usage:     "Prints the heading outline of a Notion page as JSON",
				Action:    runOutline,
				ArgsUsage: "PAGE_ID",
			},
		},
	}

	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		logger.Error("Program ended with error", err)
		os.Exit(1)
	}
}
