package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mangoshelf/libcache/internal/snapshot"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the snapshot is usable",
	Long: `Verify that the library snapshot would be accepted on startup.

This command checks:
- The file can be decompressed and decoded
- The format version is supported
- The stored library root matches the configured one
- The number of titles matches --count, when given`,
	RunE: runVerify,
}

var (
	verifyCount         int
	verifyDeleteInvalid bool
)

func init() {
	verifyCmd.Flags().IntVar(&verifyCount, "count", -1, "expected number of titles (skip the check if negative)")
	verifyCmd.Flags().BoolVar(&verifyDeleteInvalid, "delete-invalid", false, "delete the snapshot if it fails verification")
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	store := openStore()

	snap, err := store.Read(cmd.Context())
	if errors.Is(err, snapshot.ErrNotFound) {
		fmt.Printf("No snapshot at %s.\n", store.Path())
		return nil
	}
	if err == nil {
		count := verifyCount
		if count < 0 {
			count = snap.Count()
		}
		err = snap.Validate(cfg.LibraryPath, count)
	}
	if err == nil {
		fmt.Printf("OK: %d titles for %s.\n", snap.Count(), snap.Root)
		return nil
	}

	fmt.Printf("INVALID: %v\n", err)
	if !errors.Is(err, snapshot.ErrCorrupt) && !errors.Is(err, snapshot.ErrMismatch) {
		return err
	}
	if verifyDeleteInvalid {
		if err := store.Delete(); err != nil {
			return err
		}
		fmt.Printf("Deleted %s.\n", store.Path())
		return nil
	}
	return fmt.Errorf("snapshot failed verification")
}
