package main

import (
	"context"
	"fmt"
	"io"

	"github.com/dukerupert/whathappened/internal/config"
	"github.com/dukerupert/whathappened/internal/logging"
	"github.com/dukerupert/whathappened/internal/retention"
	"github.com/dukerupert/whathappened/internal/store"
)

func clean(args []string, stdout io.Writer) error {
	fs, configPath := newFlagSet("clean")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	factory := store.NewFactory(cfg.Storage.Directory, nil, logger.With("component", "store"))
	n, err := retention.RunOnce(context.Background(), factory, logger.With("component", "retention"))
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "cleaned %d stores\n", n)
	return nil
}
