package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is loaded when LoadDotenv is called without paths.
const DefaultEnvFile = ".env"

// LoadDotenv loads each file into the process environment. Values in the
// files override variables already set. A missing file is skipped; a file
// that cannot be parsed is an error.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{DefaultEnvFile}
	}
	for _, p := range paths {
		if err := godotenv.Overload(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", p, err)
		}
	}
	return nil
}
