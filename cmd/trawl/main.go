// Command trawl indexes documents from local and cloud providers into a
// semantic index and answers searches and questions over it.
package main

import (
	"os"

	"github.com/trawlhq/trawl/internal/adapters/driving/cli"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
