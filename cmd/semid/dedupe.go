// Dedupe command reports surrogate rows colliding on the same reference
// columns.
// Implements: prd011-semid-cli R2.3.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Report duplicate entity rows",
	Long: `Dedupe scans the primary ID table for groups of rows sharing the same
title, namespace, interwiki, and subobject. Such groups should not exist
while the unique hash index holds; they can remain in stores that
predate it or suffered hash corruption.

Example:
  semid dedupe
  semid dedupe --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		reports, err := eng.IDs().FindDuplicates()
		if err != nil {
			return fmt.Errorf("find duplicates: %w", err)
		}

		if flagJSON {
			return printJSON(reports)
		}
		if len(reports) == 0 {
			fmt.Println("No duplicate rows found")
			return nil
		}
		for _, r := range reports {
			fmt.Printf("%d rows: title=%q namespace=%d iw=%q subobject=%q\n",
				r.Count, r.Title, r.Namespace, r.Interwiki, r.Subobject)
		}
		return nil
	},
}
