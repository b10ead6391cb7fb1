package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sirenscope/internal/dates"
	"sirenscope/internal/discover"
	"sirenscope/internal/export"
	"sirenscope/internal/filter"
	"sirenscope/internal/registry"
)

var discoverFlags struct {
	source          string
	nafCodes        []string
	departments     []string
	keywords        []string
	purposes        []string
	birthMax        string
	includeInactive bool
	limit           int
	pageSize        int
	validate        bool
	profilePath     string
	out             string
	format          string
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Collect identifiers matching sector, geography and keyword filters",
	Long: `Discover traverses a registry search, unions the matching 9-digit
identifiers across every filter combination, and writes them to a
single-column artifact consumable by the enrich command.

The free source (gouv) paginates by page number; the paid source (pappers)
paginates by cursor and supports keyword, purpose and director-birth-date
dimensions.`,
	Run: runDiscover,
}

func init() {
	f := discoverCmd.Flags()
	f.StringVar(&discoverFlags.source, "source", "gouv", "Search source: gouv or pappers")
	f.StringSliceVar(&discoverFlags.nafCodes, "naf", nil, "Activity codes to search (repeatable)")
	f.StringSliceVar(&discoverFlags.departments, "dept", nil, "Department codes to search (repeatable)")
	f.StringSliceVar(&discoverFlags.keywords, "keyword", nil, "Free-text search terms (paid source only)")
	f.StringSliceVar(&discoverFlags.purposes, "purpose", nil, "Company-purpose search terms (paid source only)")
	f.StringVar(&discoverFlags.birthMax, "birth-max", "", "Upper bound on director birth dates (any common date format)")
	f.BoolVar(&discoverFlags.includeInactive, "include-inactive", false, "Include ceased companies")
	f.IntVar(&discoverFlags.limit, "limit", 0, "Stop after collecting this many identifiers (0 = unlimited)")
	f.IntVar(&discoverFlags.pageSize, "page-size", 0, "Cursor page size for the paid source")
	f.BoolVar(&discoverFlags.validate, "validate", false, "Fetch each candidate's detail record and keep only sector-profile matches")
	f.StringVar(&discoverFlags.profilePath, "profile", "", "YAML sector profile used by --validate (default: built-in hospitality profile)")
	f.StringVar(&discoverFlags.out, "out", "output/sirens.csv", "Artifact path")
	f.StringVar(&discoverFlags.format, "format", "csv", "Artifact format: csv or json")

	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) {
	log := newLogger()
	defer log.Sync()

	source, err := discover.ParseSource(discoverFlags.source)
	if err != nil {
		log.Fatal("invalid --source", zap.Error(err))
	}
	format, err := export.ParseFormat(discoverFlags.format)
	if err != nil {
		log.Fatal("invalid --format", zap.Error(err))
	}

	dims := discover.Dimensions{
		NAFCodes:      discoverFlags.nafCodes,
		Departments:   discoverFlags.departments,
		Keywords:      discoverFlags.keywords,
		Purposes:      discoverFlags.purposes,
		IncludeCeased: discoverFlags.includeInactive,
		Limit:         discoverFlags.limit,
	}
	if discoverFlags.birthMax != "" {
		pd := dates.Parse(discoverFlags.birthMax)
		if pd == nil {
			log.Fatal("unparseable --birth-max date", zap.String("value", discoverFlags.birthMax))
		}
		dims.MaxBirthDate = formatBirthBound(pd, source)
	}

	ctx := signalContext(log)

	var pappers *registry.PappersClient
	if source == discover.SourcePappers || discoverFlags.validate {
		pappers = registry.NewPappersClient(requireAPIKey(log), log)
	}
	gouv := registry.NewGouvClient(log)

	d := discover.New(pappers, gouv, log)
	if discoverFlags.pageSize > 0 {
		d.PageSize = discoverFlags.pageSize
	}

	sirens, err := d.Run(ctx, source, dims)
	if err != nil {
		log.Fatal("discovery aborted", zap.Error(err))
	}
	log.Info("discovery finished", zap.Int("identifiers", len(sirens)))

	if discoverFlags.validate {
		profile := filter.DefaultProfile()
		if discoverFlags.profilePath != "" {
			profile, err = filter.LoadProfile(discoverFlags.profilePath)
			if err != nil {
				log.Fatal("failed to load sector profile", zap.Error(err))
			}
		}
		sirens, err = d.Validate(ctx, sirens, profile)
		if err != nil {
			log.Fatal("validation aborted", zap.Error(err))
		}
		log.Info("validation finished", zap.Int("kept", len(sirens)))
	}

	rows := make([]export.Row, 0, len(sirens))
	for _, s := range sirens {
		rows = append(rows, export.Row{"siren": s})
	}
	meta := export.NewMetadata(map[string]any{
		"source":       string(source),
		"naf":          discoverFlags.nafCodes,
		"departements": discoverFlags.departments,
		"keywords":     discoverFlags.keywords,
		"validated":    discoverFlags.validate,
	}, len(rows))

	writer := export.NewWriter(0, log)
	if err := writer.Export(rows, []string{"siren"}, format, discoverFlags.out, meta); err != nil {
		log.Fatal("failed to write artifact", zap.Error(err))
	}
	log.Info("artifact written", zap.String("path", discoverFlags.out), zap.Int("identifiers", len(rows)))
}

// formatBirthBound renders a date bound the way each upstream API expects it:
// DD-MM-YYYY for the paid API, YYYY-MM-DD for the free one.
func formatBirthBound(pd *dates.PartialDate, source discover.Source) string {
	m, d := pd.Month, pd.Day
	if m == 0 {
		m = 1
	}
	if d == 0 {
		d = 1
	}
	if source == discover.SourcePappers {
		return fmt.Sprintf("%02d-%02d-%04d", d, m, pd.Year)
	}
	return fmt.Sprintf("%04d-%02d-%02d", pd.Year, m, d)
}
