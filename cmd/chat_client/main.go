package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chat_client",
	Short: "Terminal client for marketplace chat rooms",
	Long: `Join a marketplace chat room from the terminal.

Available subcommands:
  connect - open a room, print messages and send stdin lines
  token   - mint a development JWT for a member`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(connectCmd, tokenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
