package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var collectionRecreate bool

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage the vector collection",
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create the configured vector collection",
	Long: `Creates the configured collection with the embedding model's dimension,
using named content and meta spaces when vector.multivector_enabled is set.
An existing collection is kept unless --recreate is given, which deletes it
and every vector in it.`,
	Args: cobra.NoArgs,
	RunE: runCollectionCreate,
}

func init() {
	collectionCreateCmd.Flags().BoolVar(&collectionRecreate, "recreate", false, "drop and recreate an existing collection")
	collectionCmd.AddCommand(collectionCreateCmd)
	rootCmd.AddCommand(collectionCmd)
}

func runCollectionCreate(cmd *cobra.Command, _ []string) error {
	if collectionManager == nil {
		return errors.New("vector store not configured")
	}
	if err := collectionManager.EnsureCollection(cmd.Context(), collectionRecreate); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	name := ""
	if settingsService != nil {
		name = settingsService.Snapshot().Vector.Collection
	}
	if collectionRecreate {
		cmd.Printf("Collection %s recreated.\n", name)
	} else {
		cmd.Printf("Collection %s is ready.\n", name)
	}
	return nil
}
