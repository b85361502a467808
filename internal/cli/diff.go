package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/angelmondragon/ordersync-backend/internal/articles"
	"github.com/angelmondragon/ordersync-backend/internal/enrichment"
	"github.com/angelmondragon/ordersync-backend/internal/reconcile"
	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
)

// DiffReport is the dry-run outcome of reconciling two order snapshots.
type DiffReport struct {
	OldLines       int            `json:"old_lines"`
	NewLines       int            `json:"new_lines"`
	Bootstrap      bool           `json:"bootstrap"`
	Changed        bool           `json:"changed"`
	CountChanged   bool           `json:"count_changed"`
	ChangedSerials []string       `json:"changed_serials"`
	Removed        map[string]int `json:"removed"`
	RemovedTotal   int            `json:"removed_total"`
	Warnings       int            `json:"warnings"`
}

type diffOptions struct {
	references string
	mode       string
}

// NewDiffCommand creates the diff command.
func NewDiffCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &diffOptions{}

	cmd := &cobra.Command{
		Use:   "diff <old.csv> <new.csv>",
		Short: "Reconcile two order snapshots without touching the cache",
		Long: `Enrich two order extraction files and report what an incremental refresh
would do: whether the generation would be replaced, which orders changed, and
how many lines disappeared from each.`,
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := runDiff(cmd.Context(), args[0], args[1], opts)
			if err != nil {
				return err
			}
			return writeResult(cmd.OutOrStdout(), rootOpts, report, func(w io.Writer) {
				printDiff(w, report)
			})
		},
	}

	cmd.Flags().StringVar(&opts.references, "references", "", "article reference CSV used for department enrichment")
	cmd.Flags().StringVar(&opts.mode, "mode", "incremental", "enrichment mode (incremental|full)")

	return cmd
}

func runDiff(ctx context.Context, oldPath, newPath string, opts *diffOptions) (DiffReport, error) {
	mode := enrichment.ModeIncremental
	switch opts.mode {
	case "incremental":
	case "full":
		mode = enrichment.ModeFull
	default:
		return DiffReport{}, fmt.Errorf("invalid mode %q", opts.mode)
	}

	lookup := enrichment.MapLookup{}
	if opts.references != "" {
		rows, err := readArticles(opts.references)
		if err != nil {
			return DiffReport{}, err
		}
		lookup, _ = articles.IndexFromRows(rows)
	}
	enricher := enrichment.New(lookup, time.Now)

	oldLines, oldWarn, err := enrichFile(ctx, enricher, oldPath, mode)
	if err != nil {
		return DiffReport{}, err
	}
	newLines, newWarn, err := enrichFile(ctx, enricher, newPath, mode)
	if err != nil {
		return DiffReport{}, err
	}

	outcome := reconcile.Diff(oldLines, newLines)
	report := DiffReport{
		OldLines:       len(oldLines),
		NewLines:       len(newLines),
		Bootstrap:      outcome.Bootstrap,
		Changed:        outcome.Changed,
		CountChanged:   outcome.CountChanged,
		ChangedSerials: outcome.ChangedSerials,
		Removed:        make(map[string]int, len(outcome.Removed)),
		RemovedTotal:   outcome.RemovedCount(),
		Warnings:       oldWarn + newWarn,
	}
	if report.ChangedSerials == nil {
		report.ChangedSerials = []string{}
	}
	for serial, lines := range outcome.Removed {
		if len(lines) > 0 {
			report.Removed[serial] = len(lines)
		}
	}
	return report, nil
}

func enrichFile(ctx context.Context, enricher *enrichment.Enricher, path string, mode enrichment.Mode) ([]snapshot.OrderLine, int, error) {
	raws, err := snapshot.FileProducer{Path: path}.ProduceOrders(ctx)
	if err != nil {
		return nil, 0, err
	}
	lines, warn := enricher.EnrichAll(raws, mode)
	return lines, len(multierr.Errors(warn)), nil
}

func readArticles(path string) ([]snapshot.ArticleRow, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer fh.Close()
	return snapshot.ParseArticles(fh)
}

func printDiff(w io.Writer, r DiffReport) {
	fmt.Fprintf(w, "lines: %d -> %d\n", r.OldLines, r.NewLines)
	if r.Bootstrap {
		fmt.Fprintln(w, "bootstrap: the old snapshot is empty, the new one would be adopted as-is")
		return
	}
	if !r.Changed {
		fmt.Fprintln(w, "no changes: the installed generation would be kept")
		return
	}
	fmt.Fprintf(w, "changed: yes (count changed: %t)\n", r.CountChanged)
	fmt.Fprintf(w, "changed orders: %d\n", len(r.ChangedSerials))
	serials := make([]string, 0, len(r.Removed))
	for serial := range r.Removed {
		serials = append(serials, serial)
	}
	sort.Strings(serials)
	for _, serial := range serials {
		fmt.Fprintf(w, "  %s: %d removed\n", serial, r.Removed[serial])
	}
	if r.Warnings > 0 {
		fmt.Fprintf(w, "enrichment warnings: %d\n", r.Warnings)
	}
}
