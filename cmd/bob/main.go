package main

import (
	"fmt"
	"os"

	"github.com/esxr/bob/internal/cli"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{Use: "bob"}

func main() {
	rootCmd.PersistentFlags().String("db", "", "Run-history database connection string (optional)")
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
