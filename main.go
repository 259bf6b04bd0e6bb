package main

import (
	"os"

	"github.com/flanksource/gid-seminars/cmd"
)

func main() {
	if err := cmd.Root.Execute(); err != nil {
		os.Exit(1)
	}
}
