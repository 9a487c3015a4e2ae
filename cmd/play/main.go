// Package main provides an interactive terminal story player.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	playcmd "github.com/louisbranch/storyengine/internal/cmd/play"
	platformcmd "github.com/louisbranch/storyengine/internal/platform/cmd"
	"github.com/louisbranch/storyengine/internal/platform/config"
	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
)

func main() {
	cfg, err := playcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := platformcmd.RunWithTelemetry(ctx, platformcmd.ServicePlay, func(ctx context.Context) error {
		return playcmd.Run(ctx, cfg, os.Stdin, os.Stdout, os.Stderr)
	}); err != nil {
		config.ExitCodef(apperrors.GetCode(err).ExitCode(), "Error: %s", apperrors.Localize(err, cfg.Locale))
	}
}
