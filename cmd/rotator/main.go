package main

import (
	"os"

	"github.com/quantfell/rotator/cmd/rotator/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
