package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/teslashibe/go-vigil/internal/config"
	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/watch"
)

func watchCommand(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	fs := newFlagSet("watch", &cfg, out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("watch: expected a dashboard URL")
	}

	log.Init(cfg.LogLevel)

	client, err := watch.NewClient(fs.Arg(0), log.L())
	if err != nil {
		return err
	}

	return client.Run(ctx, func(text string) {
		fmt.Fprintf(out, "%s\n\n", text)
	})
}
