package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/linkpulse/internal/targets"
)

var parseCmd = &cobra.Command{
	Use:   "parse <text>...",
	Short: "Show how target input expands",
	Long: `Print the addresses that free-form target input expands to, one per line,
without storing anything.`,
	Args: cobra.MinimumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		addrs := targets.Parse(strings.Join(args, " "))
		out := cmd.OutOrStdout()
		for _, a := range addrs {
			fmt.Fprintln(out, a)
		}
		if len(addrs) == 0 {
			return fmt.Errorf("no valid targets in input")
		}
		return nil
	},
}
