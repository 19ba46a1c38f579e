// # cmd/wrapgen/main.go
package main

import (
	"os"

	"wrapgen/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
