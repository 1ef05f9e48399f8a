package main

import (
	"errors"
	"os"

	"github.com/modebench/modebench/cmd"
	"github.com/modebench/modebench/internal/gate"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		if errors.Is(err, gate.ErrMarginExceeded) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
