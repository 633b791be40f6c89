package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/teslashibe/go-vigil/internal/config"
	"github.com/teslashibe/go-vigil/internal/log"
	"github.com/teslashibe/go-vigil/pkg/reconcile"
)

func predictCommand(ctx context.Context, cfg config.Config, args []string, out io.Writer) error {
	fs := newFlagSet("predict", &cfg, out)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("predict: expected exactly one file")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log.Init(cfg.LogLevel)

	client, err := newPredictClient(cfg, log.L())
	if err != nil {
		return err
	}

	up, err := client.PredictFile(ctx, fs.Arg(0))
	fmt.Fprintln(out, reconcile.Upload(up, err))
	return err
}
