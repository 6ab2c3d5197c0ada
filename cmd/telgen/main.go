package main

import (
	"os"

	"telgen/cmd/telgen/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
