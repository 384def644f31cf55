// Init command for the semid CLI.
// Implements: prd011-semid-cli R2.1; prd010-configuration-directories R1.6, R2.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize semid storage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}
		if err := ensureConfigDir(configDir); err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}
		if err := ensureDefaultConfigFile(configDir); err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}

		// Opening the engine creates the data directory, the database
		// file, the schema, and the border sentinel row.
		eng, err := openEngine()
		if err != nil {
			fmt.Fprintln(os.Stderr, "init:", err)
			os.Exit(exitSysError)
		}
		defer eng.Close()

		fmt.Println("Semid initialized successfully")
		fmt.Println("  config:", eng.configDir)
		fmt.Println("  data:  ", eng.dataDir)
		return nil
	},
}
