// Package main provides the seeder CLI for the site gallery.
// It manages identifier to website mappings and audits stored uploads.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/jo-hoe/sitegallery/internal/common"
)

func main() {
	slog.SetDefault(common.CreateLogger(os.Stderr))

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
