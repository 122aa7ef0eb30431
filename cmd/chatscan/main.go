package main

import (
	"os"

	"github.com/ironsheep/chatscan/internal/cli"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

func main() {
	info := cli.BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
	}
	if err := cli.Execute(info); err != nil {
		os.Exit(1)
	}
}
