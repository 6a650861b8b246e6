package main

import (
	"os"
	"strings"

	"github.com/suPer8Hu/coding-arena/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		if strings.Contains(err.Error(), "unknown command") {
			os.Stderr.WriteString("Run 'arena-cli --help' for usage.\n")
		}
		os.Exit(1)
	}
}
