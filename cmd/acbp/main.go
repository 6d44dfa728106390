package main

import (
	"os"

	"github.com/dotk-io/acbp/internal/cmd"
)

func main() {
	if err := cmd.Root().Execute(); err != nil {
		os.Exit(1)
	}
}
