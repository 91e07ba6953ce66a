package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hargabyte/bundlescope/internal/cache"
	"github.com/hargabyte/bundlescope/internal/config"
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show stored reports",
	Long: `Display the reports stored in .bscope/history.db, newest first.

Each entry includes:
  - Run id
  - Project
  - Bundler family
  - Generation time
  - Bundle score

Flags:
  --project NAME  Only list reports of this project
  --limit N       Number of reports to show (default: 10, 0 for all)
  --stats         Print report and project counts instead

Examples:
  bscope history                    # Show last 10 reports
  bscope history --project shop     # Reports of one project
  bscope history --format json      # JSON output for parsing`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var (
	historyProject string
	historyLimit   int
	historyStats   bool
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyProject, "project", "", "Only list reports of this project")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of reports to show")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "Print report and project counts")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	formatter, err := formatterFor(cfg)
	if err != nil {
		return err
	}

	configDir, err := config.FindConfigDir(".")
	if err != nil {
		return fmt.Errorf("no .bscope directory found: run 'bscope init' first")
	}
	history, err := cache.Open(configDir)
	if err != nil {
		return err
	}
	defer history.Close()

	if historyStats {
		st, err := history.GetStats()
		if err != nil {
			return err
		}
		return formatter.FormatToWriter(cmd.OutOrStdout(), map[string]int64{
			"reports":  st.Reports,
			"projects": st.Projects,
		})
	}

	entries, err := history.ListReports(historyProject, historyLimit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []cache.Entry{}
	}
	return formatter.FormatToWriter(cmd.OutOrStdout(), entries)
}
