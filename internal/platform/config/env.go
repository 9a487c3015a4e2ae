package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// DotEnvPathVar names the variable that points at an alternate .env file.
const DotEnvPathVar = "STORYENGINE_DOTENV"

// ParseEnv loads configuration from environment variables.
//
// A .env file is read first when present; variables already set in the
// process environment always win over file values.
func ParseEnv(target any) error {
	if err := LoadDotEnv(os.Getenv(DotEnvPathVar)); err != nil {
		return err
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotEnv reads path (or ".env" when path is blank) into the process
// environment. A missing default file is not an error; a missing explicit
// file is.
func LoadDotEnv(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load dotenv %s: %w", path, err)
	}
	return nil
}
