// Command extcat is the command-line client of the external table catalog.
package main

import (
	"os"

	"duck-connect/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
