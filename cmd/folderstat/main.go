// Command folderstat summarizes a folder by file category, size and media duration.
package main

import (
	"fmt"
	"os"

	"github.com/idelchi/folderstat/internal/cli"
)

// version is set at build time.
var version = "unknown - unofficial & generated by unknown"

func main() {
	if err := cli.New(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
