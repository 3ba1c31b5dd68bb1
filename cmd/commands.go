package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/takak2166/notionblog/internal/export"
	"github.com/takak2166/notionblog/internal/imagecache"
	"github.com/takak2166/notionblog/internal/logger"
	"github.com/takak2166/notionblog/internal/notion"
	"github.com/takak2166/notionblog/internal/outline"
	"github.com/takak2166/notionblog/internal/server"
	"github.com/takak2166/notionblog/internal/store"
	cli "github.com/urfave/cli/v3"
)

func runExport(ctx context.Context, cmd *cli.Command) error {
	client, err := notion.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize Notion client: %w", err)
	}

	st, err := store.Open(cfg.StorePath, false)
	if err != nil {
		return err
	}
	defer st.Close()

	images := imagecache.New(afero.NewOsFs(), cfg.ImageDir, cfg.ImagePrefix, nil)

	stats, err := export.Run(ctx, client, images, st)
	if err != nil {
		logger.Warn("Export completed with errors", logger.Fields{"failed": stats.Failed})
	}
	return err
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	port := cfg.Port
	if p := cmd.String("port"); p != "" {
		port = p
	}

	st, err := store.Open(cfg.StorePath, true)
	if err != nil {
		return err
	}
	defer st.Close()

	if exportedAt, err := st.ExportedAt(); err == nil && !exportedAt.IsZero() {
		logger.Info("Serving export", logger.Fields{"exported_at": exportedAt.Format(time.RFC3339)})
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", port),
		Handler:           server.New(st, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Listening", logger.Fields{"addr": srv.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("Shutting down")
	return srv.Shutdown(shutdownCtx)
}

func runOutline(ctx context.Context, cmd *cli.Command) error {
	pageID := cmd.Args().First()
	if pageID == "" {
		return fmt.Errorf("page id is required")
	}

	client, err := notion.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize Notion client: %w", err)
	}

	refs, graph, err := client.FetchContent(ctx, pageID)
	if err != nil {
		return err
	}

	nodes := outline.Build(refs, graph)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Outline    interface{} `json:"outline"`
		HeadingIDs []string    `json:"headingIds"`
	}{nodes, outline.Flatten(nodes)})
}
