package main

import (
	"os"

	"github.com/TFMV/friendgraph/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
