// Command causeway copies PNC builds into Brew.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "causeway",
		Short:         "Import PNC builds into Brew",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCommand(),
		newImportMilestoneCommand(),
		newUntagCommand(),
		newSourcesCommand(),
		newTokenCommand(),
		newSecretCommand(),
	)
	return root
}
