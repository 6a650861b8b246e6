// Package cli implements arena-cli, a terminal client for the chat stream
// and a few developer helpers.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:     "arena-cli",
	Short:   "Coding Arena terminal client",
	Version: version,
	Long: `A command-line client for the Coding Arena chat stream. It keeps chat
sessions locally, streams answers as they arrive and renders Markdown with
highlighted code blocks.`,
	Example: `  # Chat with the local API server
  $ arena-cli chat -s http://localhost:8080

  # Render an answer saved as Markdown to a standalone HTML page
  $ arena-cli render answer.md -o answer.html

  # Mint a development token for the content endpoints
  $ arena-cli token --user 1`,
}

// Execute runs the root command.
func Execute() error {
	rootCmd.SetVersionTemplate(fmt.Sprintf("arena-cli version %s\n", version))
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(tokenCmd)
}
