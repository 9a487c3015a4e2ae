// Package main reports message catalog completeness per locale.
package main

import (
	"flag"
	"os"

	"github.com/louisbranch/storyengine/internal/platform/config"
	"github.com/louisbranch/storyengine/internal/tools/i18nstatus"
)

func main() {
	cfg, err := i18nstatus.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	if err := i18nstatus.Run(cfg, os.Stdout); err != nil {
		config.Exitf("Error: %v", err)
	}
}
