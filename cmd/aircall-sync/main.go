package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aircall-sync",
	Short: "Aircall Sync - call events to OGGO and Zoho CRM",
	Long:  `Receives Aircall call webhooks and records each call as a contact-linked activity in every configured CRM backend.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
