package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// envFileVar names a comma separated list of dotenv files, loaded in order.
const envFileVar = "UDIR_ENV_FILE"

var defaultEnvFiles = []string{".env.local", ".env"}

// loadEnvFiles populates unset variables from dotenv files. Variables already
// in the environment win, and earlier files win over later ones. Missing
// default files are skipped; a missing file named in UDIR_ENV_FILE is an error.
func loadEnvFiles() ([]string, error) {
	explicit := strings.TrimSpace(os.Getenv(envFileVar))
	files := defaultEnvFiles
	if explicit != "" {
		files = nil
		for _, f := range strings.Split(explicit, ",") {
			if f = strings.TrimSpace(f); f != "" {
				files = append(files, f)
			}
		}
	}

	loaded := make([]string, 0, len(files))
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if explicit == "" && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("load %s: %w", f, err)
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}
