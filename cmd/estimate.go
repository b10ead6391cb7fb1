package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sirenscope/internal/registry"
)

var estimateFlags struct {
	nafCodes    []string
	departments []string
	activeOnly  bool
}

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Count matching companies per department without fetching any records",
	Long: `Estimate queries the free registry for the result count of each
activity-code/department combination. It costs nothing and is the quickest
way to size a discovery run before spending paid-API credits.`,
	Run: runEstimate,
}

func init() {
	f := estimateCmd.Flags()
	f.StringSliceVar(&estimateFlags.nafCodes, "naf", []string{"78.20Z"}, "Activity codes to count (repeatable)")
	f.StringSliceVar(&estimateFlags.departments, "dept", []string{"75", "77", "78", "91", "92", "93", "94", "95"}, "Department codes to count (repeatable)")
	f.BoolVar(&estimateFlags.activeOnly, "active-only", true, "Count only administratively active companies")

	rootCmd.AddCommand(estimateCmd)
}

func runEstimate(cmd *cobra.Command, args []string) {
	log := newLogger()
	defer log.Sync()

	ctx := signalContext(log)
	gouv := registry.NewGouvClient(log)

	total := 0
	for _, dept := range estimateFlags.departments {
		deptTotal := 0
		for _, naf := range estimateFlags.nafCodes {
			n, err := gouv.Count(ctx, registry.GouvFilter{
				NAFCode:    naf,
				Department: dept,
				ActiveOnly: estimateFlags.activeOnly,
			})
			if err != nil {
				if ctx.Err() != nil {
					log.Fatal("estimate cancelled")
				}
				log.Warn("count failed, skipping combination",
					zap.String("naf", naf), zap.String("dept", dept), zap.Error(err))
				continue
			}
			deptTotal += n
			log.Debug("counted", zap.String("naf", naf), zap.String("dept", dept), zap.Int("companies", n))
		}
		total += deptTotal
		log.Info("department total", zap.String("dept", dept), zap.Int("companies", deptTotal))
	}
	log.Info("estimate complete",
		zap.Int("departments", len(estimateFlags.departments)),
		zap.Strings("naf", estimateFlags.nafCodes),
		zap.Int("companies", total))
}
