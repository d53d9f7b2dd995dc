package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/verso-labs/versobot/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:     "versoctl",
		Short:   "versoctl — manage the versobot agent from the command line",
		Version: version.Version,
	}

	root.AddCommand(
		newChatCmd(),
		newCacheCmd(),
		newSyncCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
