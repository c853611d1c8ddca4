package main

import (
	"os"

	"github.com/MrSnakeDoc/fogroute/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
