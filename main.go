package main

import (
	"os"

	"github.com/leefowlercu/flapboard/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
