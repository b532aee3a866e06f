// Command corpus manages a document library for retrieval-augmented generation.
package main

import (
	"context"
	"os"

	"github.com/custodia-labs/corpus/internal/adapters/driving/cli"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cli.SetVersion(version)
	// Cobra has already printed the error.
	if err := cli.Execute(context.Background()); err != nil {
		os.Exit(1)
	}
}
