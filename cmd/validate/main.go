// Package main provides a CLI that validates story files.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	validatecmd "github.com/louisbranch/storyengine/internal/cmd/validate"
	platformcmd "github.com/louisbranch/storyengine/internal/platform/cmd"
	"github.com/louisbranch/storyengine/internal/platform/config"
	apperrors "github.com/louisbranch/storyengine/internal/platform/errors"
)

func main() {
	cfg, err := validatecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceValidate, func(ctx context.Context) error {
		return validatecmd.Run(ctx, cfg, os.Stdout, os.Stderr)
	})
	if err == nil {
		return
	}
	if errors.Is(err, validatecmd.ErrInvalidStory) {
		// The report already explains the failure.
		os.Exit(apperrors.CodeStoryInvalid.ExitCode())
	}
	config.ExitCodef(apperrors.GetCode(err).ExitCode(), "Error: %s", apperrors.Localize(err, cfg.Locale))
}
