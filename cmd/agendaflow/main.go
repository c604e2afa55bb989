package main

import (
	"fmt"
	"os"

	"github.com/ignatij/agendaflow/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agendaflow",
	Short: "Walk participants through scheduling requests and confirmations",
}

func main() {
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
