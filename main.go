package main

import (
	"os"

	"github.com/SuperGenLabs/img-velocity/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
