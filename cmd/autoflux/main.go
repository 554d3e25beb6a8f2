package main

import (
	"os"

	"github.com/autoflux/autoflux/cmd/autoflux/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
