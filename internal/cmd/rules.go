package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hargabyte/bundlescope/internal/analyze"
)

// rulesCmd represents the rules command
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the enabled audit rules with their weights",
	Long: `List every audit rule that runs on analyze, in the order results are
reported: built-in rules, cache invalidation, then external rules from the
audits.external configuration.

Weights include audits.weights overrides. Rules named in audits.disabled are
not listed.

Examples:
  bscope rules
  bscope rules --format json`,
	Args: cobra.NoArgs,
	RunE: runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	formatter, err := formatterFor(cfg)
	if err != nil {
		return err
	}

	engine := analyze.NewEngine(analyze.Options{Audit: cfg.AuditSettings()})
	return formatter.FormatToWriter(cmd.OutOrStdout(), engine.Describe())
}
