package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sirenscope/internal/csvio"
	"sirenscope/internal/dates"
	"sirenscope/internal/enrich"
	"sirenscope/internal/export"
	"sirenscope/internal/filter"
	"sirenscope/internal/registry"
)

var enrichFlags struct {
	in              string
	out             string
	format          string
	mode            string
	cutoff          string
	role            string
	revenueMin      int64
	revenueMax      int64
	headcountMin    int
	headcountMax    int
	cities          []string
	includeInactive bool
	concurrency     int
	batchSize       int
	economy         bool
	delimiter       string
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fetch detail records for a list of identifiers and export the filtered rows",
	Long: `Enrich reads 9-digit identifiers from a CSV, fetches each company's
detail record from the paid API, applies the configured director and company
filters, and writes the surviving rows to a CSV, JSON or XLSX artifact.

In economy mode the free registry is consulted first and its fields are
preferred, which keeps paid-API spend down on large lists.`,
	Run: runEnrich,
}

func init() {
	f := enrichCmd.Flags()
	f.StringVar(&enrichFlags.in, "in", "", "Input CSV holding the identifiers (required)")
	f.StringVar(&enrichFlags.out, "out", "output/enriched.csv", "Artifact path")
	f.StringVar(&enrichFlags.format, "format", "csv", "Artifact format: csv, json or xlsx")
	f.StringVar(&enrichFlags.mode, "mode", string(filter.ModeDirectors), "Row granularity: directors or companies")
	f.StringVar(&enrichFlags.cutoff, "cutoff", "", "Keep only directors born strictly before this date (any common date format)")
	f.StringVar(&enrichFlags.role, "role", "", "Keep only directors whose role matches exactly (accent- and case-insensitive)")
	f.Int64Var(&enrichFlags.revenueMin, "revenue-min", 0, "Minimum revenue, in euros")
	f.Int64Var(&enrichFlags.revenueMax, "revenue-max", 0, "Maximum revenue, in euros (0 = unbounded)")
	f.IntVar(&enrichFlags.headcountMin, "headcount-min", 0, "Minimum headcount")
	f.IntVar(&enrichFlags.headcountMax, "headcount-max", 0, "Maximum headcount (0 = unbounded)")
	f.StringSliceVar(&enrichFlags.cities, "city", nil, "Keep only companies whose head-office city matches (repeatable)")
	f.BoolVar(&enrichFlags.includeInactive, "include-inactive", false, "Keep ceased companies")
	f.IntVar(&enrichFlags.concurrency, "concurrency", 0, "Detail fetches in flight at once")
	f.IntVar(&enrichFlags.batchSize, "batch-size", 0, "Identifiers per progress batch")
	f.BoolVar(&enrichFlags.economy, "economy", false, "Consult the free registry first and prefer its fields")
	f.StringVar(&enrichFlags.delimiter, "delimiter", ";", "CSV field delimiter")
	enrichCmd.MarkFlagRequired("in")

	rootCmd.AddCommand(enrichCmd)
}

func runEnrich(cmd *cobra.Command, args []string) {
	log := newLogger()
	defer log.Sync()

	format, err := export.ParseFormat(enrichFlags.format)
	if err != nil {
		log.Fatal("invalid --format", zap.Error(err))
	}
	mode := filter.Mode(enrichFlags.mode)
	if mode != filter.ModeDirectors && mode != filter.ModeCompanies {
		log.Fatal("invalid --mode (want directors or companies)", zap.String("value", enrichFlags.mode))
	}

	spec := filter.Spec{
		IncludeCeased: enrichFlags.includeInactive,
		MinRevenue:    enrichFlags.revenueMin,
		MaxRevenue:    enrichFlags.revenueMax,
		MinHeadcount:  enrichFlags.headcountMin,
		MaxHeadcount:  enrichFlags.headcountMax,
		Cities:        enrichFlags.cities,
		Role:          enrichFlags.role,
		Mode:          mode,
	}
	if enrichFlags.cutoff != "" {
		pd := dates.Parse(enrichFlags.cutoff)
		if pd == nil {
			log.Fatal("unparseable --cutoff date", zap.String("value", enrichFlags.cutoff))
		}
		spec.Cutoff = pd
	}

	apiKey := requireAPIKey(log)

	sirens, err := csvio.LoadIdentifierColumn(enrichFlags.in)
	if err != nil {
		log.Fatal("failed to read identifier list", zap.String("path", enrichFlags.in), zap.Error(err))
	}
	if len(sirens) == 0 {
		log.Fatal("no valid identifiers in input", zap.String("path", enrichFlags.in))
	}
	log.Info("loaded identifiers", zap.String("path", enrichFlags.in), zap.Int("count", len(sirens)))

	ctx := signalContext(log)

	pappers := registry.NewPappersClient(apiKey, log)
	var gouv *registry.GouvClient
	if enrichFlags.economy {
		gouv = registry.NewGouvClient(log)
	}

	e := enrich.New(pappers, gouv, enrich.Options{
		Concurrency: enrichFlags.concurrency,
		BatchSize:   enrichFlags.batchSize,
		Economy:     enrichFlags.economy,
		Spec:        spec,
	}, log)

	rows, stats, err := e.Run(ctx, sirens)
	if err != nil {
		e.PrintSummary(stats)
		log.Fatal("enrichment aborted", zap.Error(err))
	}
	e.PrintSummary(stats)

	meta := export.NewMetadata(map[string]any{
		"input":         enrichFlags.in,
		"mode":          string(mode),
		"cutoff":        enrichFlags.cutoff,
		"role":          enrichFlags.role,
		"revenue_min":   enrichFlags.revenueMin,
		"revenue_max":   enrichFlags.revenueMax,
		"headcount_min": enrichFlags.headcountMin,
		"headcount_max": enrichFlags.headcountMax,
		"cities":        enrichFlags.cities,
		"economy":       enrichFlags.economy,
	}, len(rows))

	writer := export.NewWriter(delimiterRune(enrichFlags.delimiter), log)
	if err := writer.Export(rows, spec.Columns(), format, enrichFlags.out, meta); err != nil {
		log.Fatal("failed to write artifact", zap.Error(err))
	}
	log.Info("artifact written", zap.String("path", enrichFlags.out), zap.Int("rows", len(rows)))
}

func delimiterRune(s string) rune {
	if s == "\\t" || s == "tab" {
		return '\t'
	}
	for _, r := range s {
		return r
	}
	return csvio.DefaultDelimiter
}
