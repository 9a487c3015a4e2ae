// Package main provides a CLI for importing story files into SQLite.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	platformcmd "github.com/louisbranch/storyengine/internal/platform/cmd"
	"github.com/louisbranch/storyengine/internal/platform/config"
	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
	storyimporter "github.com/louisbranch/storyengine/internal/tools/importer/story"
)

func main() {
	cfg, err := storyimporter.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceImporter, func(ctx context.Context) error {
		return storyimporter.Run(ctx, cfg, os.Stdout)
	}); err != nil {
		config.ExitCodef(apperrors.GetCode(err).ExitCode(), "Error: %s", apperrors.Localize(err, cfg.Locale))
	}
}
