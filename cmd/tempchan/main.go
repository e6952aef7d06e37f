package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRoot().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "tempchan",
		Short:         "temporary named-slot allocator daemon",
		Long:          "tempchan allocates short-lived named resources from fixed preset pools and reclaims them once they sit empty.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newSlotsCmd())
	root.AddCommand(newGroupsCmd())
	root.AddCommand(newPendingCmd())
	root.AddCommand(newAllocateCmd())
	root.AddCommand(newPickCmd())
	root.AddCommand(newEvictCmd())

	return root
}
