// locations-dump parses bacon export files under a directory and prints the
// resulting diagnostics as JSON, for troubleshooting export configuration.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/baconls/bacon-lsp/internal/diagnostics"
)

func main() {
	locationsFile := pflag.String("locations-file", ".bacon-locations", "export file name to discover")
	root := pflag.String("root", ".", "directory to search")
	pflag.Parse()

	absRoot, err := filepath.Abs(*root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid root: %v\n", err)
		os.Exit(1)
	}

	backend := diagnostics.NewBaconBackend(*locationsFile, []string{absRoot})
	result, err := backend.Diagnostics(context.Background(), "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading diagnostics: %v\n", err)
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		fmt.Fprintf(os.Stderr, "encoding diagnostics: %v\n", err)
		os.Exit(1)
	}
}
