package main

import (
	"os"

	"github.com/rustyeddy/srtrader/cmd/srtrader/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
