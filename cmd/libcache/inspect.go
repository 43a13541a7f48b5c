package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/mangoshelf/libcache/internal/snapshot"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show snapshot metadata and a summary of its contents",
	Long: `Display information about the library snapshot including:
- File size, compression and modification time
- Library root and number of titles and entries
- With --list, every title in the snapshot`,
	RunE: runInspect,
}

var (
	inspectList bool
	inspectJSON bool
)

func init() {
	inspectCmd.Flags().BoolVar(&inspectList, "list", false, "list every title")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "output result as JSON")
	rootCmd.AddCommand(inspectCmd)
}

type inspectOutput struct {
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	Codec     string    `json:"codec"`
	Modified  time.Time `json:"modified"`
	Root      string    `json:"root"`
	SavedAt   time.Time `json:"saved_at"`
	Titles    int       `json:"titles"`
	Entries   int       `json:"entries"`
	Pages     int       `json:"pages"`
	Items     []string  `json:"items,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	store := openStore()

	meta, err := store.Stat()
	if err != nil {
		return err
	}
	if !meta.Exists {
		fmt.Printf("No snapshot at %s.\n", meta.Path)
		return nil
	}

	snap, err := store.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading snapshot: %w", err)
	}

	out := summarize(meta, snap)
	if inspectJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Printf("Snapshot:  %s\n", out.Path)
	fmt.Printf("Size:      %s (%s)\n", humanize.IBytes(uint64(out.SizeBytes)), out.Codec)
	fmt.Printf("Modified:  %s (%s)\n", out.Modified.Format(time.RFC3339), humanize.Time(out.Modified))
	fmt.Printf("Saved at:  %s\n", out.SavedAt.Format(time.RFC3339))
	fmt.Printf("Root:      %s\n", out.Root)
	fmt.Printf("Titles:    %s\n", humanize.Comma(int64(out.Titles)))
	fmt.Printf("Entries:   %s\n", humanize.Comma(int64(out.Entries)))
	fmt.Printf("Pages:     %s\n", humanize.Comma(int64(out.Pages)))
	for _, line := range out.Items {
		fmt.Println("  " + line)
	}
	return nil
}

func summarize(meta snapshot.Metadata, snap *snapshot.Snapshot) inspectOutput {
	out := inspectOutput{
		Path:      meta.Path,
		SizeBytes: meta.SizeBytes,
		Codec:     meta.Codec,
		Modified:  meta.Modified,
		Root:      snap.Root,
		SavedAt:   snap.SavedAt,
		Titles:    snap.Count(),
	}
	for _, id := range snap.IDs() {
		item := snap.Items[id]
		out.Entries += len(item.Entries)
		for _, e := range item.Entries {
			out.Pages += e.Pages
		}
		if inspectList {
			line := fmt.Sprintf("%s  %s (%d entries)", id, item.Title, len(item.Entries))
			if item.ParentID != "" {
				line += " in " + item.ParentID
			}
			out.Items = append(out.Items, line)
		}
	}
	return out
}
