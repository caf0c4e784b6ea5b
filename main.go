package main

import (
	"os"

	"github.com/tailtrigger/tailtrigger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
