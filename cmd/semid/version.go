// Version command for the semid CLI.
// Implements: prd011-semid-cli R2.2.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/semid/pkg/semid"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the semid version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("semid", semid.Version)
	},
}
