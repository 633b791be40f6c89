// vigil streams webcam frames to a classification service and shows the
// labels it returns.
//
//	vigil run [-dashboard :8080] [flags]   live session until interrupted
//	vigil predict <file>                   classify one image or video
//	vigil watch <dashboard-url>            follow a running dashboard
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mdobak/go-xerrors"

	"github.com/teslashibe/go-vigil/internal/config"
	"github.com/teslashibe/go-vigil/internal/log"
)

const usage = `usage: vigil <command> [flags]

commands:
  run       capture frames and classify them until interrupted
  predict   classify one image or video file
  watch     print the predictions of a running dashboard

Run "vigil <command> -h" for the flags of a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "vigil: %v\n", err)
		os.Exit(1)
	}
	cfg := config.DefaultConfig()
	if err := cfg.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "vigil: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cmd, args := os.Args[1], os.Args[2:]
	var err error
	switch cmd {
	case "run":
		err = runCommand(ctx, cfg, args, os.Stdout)
	case "predict":
		err = predictCommand(ctx, cfg, args, os.Stdout)
	case "watch":
		err = watchCommand(ctx, cfg, args, os.Stdout)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "vigil: unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.L().ErrorContext(ctx, "vigil failed", "command", cmd, slog.Any("error", xerrors.New(err)))
		os.Exit(1)
	}
}

// newFlagSet returns a flag set bound to the shared config fields.
func newFlagSet(name string, cfg *config.Config, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "classification service URL (VIGIL_BASE_URL)")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP timeout per request (VIGIL_TIMEOUT)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error (VIGIL_LOG_LEVEL)")
	return fs
}
