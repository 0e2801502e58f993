// Command binform is the grammar-driven binary format engine CLI.
package main

import (
	"os"

	"github.com/kilupskalvis/binform/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
