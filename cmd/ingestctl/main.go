package main

import (
	"fmt"
	"os"

	"github.com/mohammedterryjack/private-ai-data/cmd/ingestctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
