// Command assetq answers questions about IT asset CSV exports.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/assetq/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
