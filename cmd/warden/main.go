// Command warden enforces workflow state machines and scans source trees.
package main

import (
	"context"
	"os"

	"github.com/roach88/warden/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:]))
}
