package main

import (
	"os"

	"github.com/tallyhq/pricekeeper/cmd/pricekeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
