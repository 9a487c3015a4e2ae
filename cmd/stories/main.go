// Package main provides a CLI that lists or exports imported stories.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	storiescmd "github.com/louisbranch/storyengine/internal/cmd/stories"
	platformcmd "github.com/louisbranch/storyengine/internal/platform/cmd"
	"github.com/louisbranch/storyengine/internal/platform/config"
	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
)

func main() {
	cfg, err := storiescmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceStories, func(ctx context.Context) error {
		return storiescmd.Run(ctx, cfg, os.Stdout, os.Stderr)
	}); err != nil {
		config.ExitCodef(apperrors.GetCode(err).ExitCode(), "Error: %s", apperrors.Localize(err, cfg.Locale))
	}
}
