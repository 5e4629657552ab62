// Command apiserver runs the molecule registry HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/turtacn/molregistry/internal/interfaces/cli"
)

var version = "dev"

func main() {
	cli.Version = version
	cmd := cli.NewServeCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
