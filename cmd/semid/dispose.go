// Dispose command removes entities and everything referencing them.
// Implements: prd011-semid-cli R2.4.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var disposeCmd = &cobra.Command{
	Use:   "dispose <id>...",
	Short: "Remove entities by surrogate ID",
	Long: `Dispose removes the given entities entirely: the primary row, auxiliary
blobs, redirect entries, statistics, and every property value row in
both subject and object roles. This is a maintenance operation for
entities that are gone from the wiki; regular deletions only mark rows.

Example:
  semid dispose 4711
  semid dispose 4711 4712 4713`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseIDArgs(args)
		if err != nil {
			return err
		}

		eng, err := openEngine()
		if err != nil {
			return err
		}
		defer eng.Close()

		for _, id := range ids {
			if err := eng.IDs().Dispose(id); err != nil {
				return fmt.Errorf("dispose %d: %w", id, err)
			}
		}
		fmt.Printf("Disposed %d entities\n", len(ids))
		return nil
	},
}
