package main

import (
	"github.com/resumed/resumed/cmd/resumed/cli"
)

func main() {
	cli.ParseFlags()

	if cli.Flags.ShowVersion {
		cli.ShowVersion()
		return
	}

	cli.Serve()
}
