package main

import (
	"os"

	"github.com/amiaddur/wavepipe/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
