package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete the snapshot so the next start rescans the library",
	Args:  cobra.NoArgs,
	RunE:  runPurge,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
}

func runPurge(cmd *cobra.Command, args []string) error {
	store := openStore()

	meta, err := store.Stat()
	if err != nil {
		return err
	}
	if !meta.Exists {
		fmt.Printf("No snapshot at %s.\n", meta.Path)
		return nil
	}
	if err := store.Delete(); err != nil {
		return err
	}
	fmt.Printf("Deleted %s (%s).\n", meta.Path, humanize.IBytes(uint64(meta.SizeBytes)))
	return nil
}
