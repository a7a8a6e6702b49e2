package main

import (
	"os"

	"github.com/akoshelev/metric-proto/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
