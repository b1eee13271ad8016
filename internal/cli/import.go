package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mapthepast/mapthepast/internal/catalog"
	"github.com/mapthepast/mapthepast/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import <catalog.json|catalog.yaml>",
	Short: "Load historical events into the catalog",
	Long: `Load historical events from a JSON or YAML file.

Events are upserted by slug, so re-importing a file updates the catalog
in place. Events whose era duration is not positive are imported but
listed, since they score 0 until fixed.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	db, _, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer db.Close()

	rep, err := catalog.Import(cmd.Context(), store.New(db), args[0])
	if err != nil {
		return err
	}
	printReport(cmd.OutOrStdout(), rep)
	return nil
}

func printReport(w io.Writer, rep catalog.Report) {
	fmt.Fprintf(w, "imported %d events\n", len(rep.Events))
	if rep.Skipped > 0 {
		fmt.Fprintf(w, "skipped %d records without slug or title\n", rep.Skipped)
	}
	for _, warn := range rep.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	for _, slug := range rep.ZeroEra {
		fmt.Fprintf(w, "zero era duration: %s\n", slug)
	}
}
