package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hargabyte/bundlescope/internal/analyze"
	"github.com/hargabyte/bundlescope/internal/cache"
	"github.com/hargabyte/bundlescope/internal/config"
	"github.com/hargabyte/bundlescope/internal/metrics"
	"github.com/hargabyte/bundlescope/internal/report"
	"github.com/hargabyte/bundlescope/internal/stats"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <stats.json>",
	Short: "Analyze a build and score its entry points",
	Long: `Analyze reads a bundler stats document, builds the dependency graph of the
build and audits every entry point.

Asset files are read from --assets (default: the directory holding the stats
file) to recover module boundaries, compressed sizes and content hashes. Assets
that are missing on disk keep the sizes the stats document reports.

The report is printed in the selected format and, when history is enabled and
a .bscope directory exists, stored for later baseline comparison.

Baselines:
  --baseline FILE    Compare against a report written with --out
  --baseline auto    Compare against the latest stored report of --project

Examples:
  bscope analyze dist/stats.json
  bscope analyze stats.json --assets dist --out report.json
  bscope analyze stats.json --project shop --baseline auto
  bscope analyze stats.json --trees trees/ --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var (
	analyzeAssets        string
	analyzeProject       string
	analyzeBaseline      string
	analyzeOut           string
	analyzeTrees         string
	analyzeStrictChunks  bool
	analyzeHTMLExclusive bool
	analyzeAux           bool
	analyzeMetricsFile   string
	analyzeNoAudits      bool
	analyzeNoHistory     bool
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeAssets, "assets", "", "Directory holding the emitted assets (default: stats file directory)")
	analyzeCmd.Flags().StringVar(&analyzeProject, "project", "", "Project name used to group reports in history")
	analyzeCmd.Flags().StringVar(&analyzeBaseline, "baseline", "", "Baseline report file, or 'auto' for the latest stored report")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "Write the full report as JSON to this file")
	analyzeCmd.Flags().StringVar(&analyzeTrees, "trees", "", "Write module trees, module map and attribution to this directory")
	analyzeCmd.Flags().BoolVar(&analyzeStrictChunks, "strict-chunks", false, "Follow lowered dynamic imports when flattening chunks")
	analyzeCmd.Flags().BoolVar(&analyzeHTMLExclusive, "html-exclusive", false, "Mark HTML assets exclusive to their initial chunk")
	analyzeCmd.Flags().BoolVar(&analyzeAux, "aux", false, "Include chunk auxiliary files")
	analyzeCmd.Flags().StringVar(&analyzeMetricsFile, "metrics-file", "", "Write Prometheus metrics in text format to this file")
	analyzeCmd.Flags().BoolVar(&analyzeNoAudits, "no-audits", false, "Build the graph without scoring entry points")
	analyzeCmd.Flags().BoolVar(&analyzeNoHistory, "no-history", false, "Do not store the report in history")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	formatter, err := formatterFor(cfg)
	if err != nil {
		return err
	}

	statsPath := args[0]
	osFs := afero.NewOsFs()
	doc, err := analyze.LoadStats(osFs, statsPath)
	if err != nil {
		return err
	}

	opts := analysisOptions(cfg, statsPath)
	opts.Project = analyzeProject
	opts.SkipAudits = analyzeNoAudits
	opts.Graph.Flags.StrictChunkRelations = opts.Graph.Flags.StrictChunkRelations || analyzeStrictChunks
	opts.Graph.Flags.HTMLExclusiveInitial = opts.Graph.Flags.HTMLExclusiveInitial || analyzeHTMLExclusive
	opts.Graph.Flags.IncludeAuxiliaryFiles = opts.Graph.Flags.IncludeAuxiliaryFiles || analyzeAux

	if opts.Graph.Baseline, err = loadBaseline(osFs, analyzeBaseline, analyzeProject); err != nil {
		return err
	}

	out, err := analyze.Run(cmd.Context(), doc, opts)
	if err != nil {
		return err
	}

	if analyzeOut != "" {
		if err := writeReport(analyzeOut, out.Report); err != nil {
			return err
		}
	}
	if analyzeTrees != "" {
		if err := writeTrees(analyzeTrees, out); err != nil {
			return err
		}
	}
	if cfg.HistoryEnabled() && !analyzeNoHistory {
		saveHistory(cfg, out.Report)
	}
	if analyzeMetricsFile != "" {
		if err := metrics.WriteTextfile(analyzeMetricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	return formatter.FormatToWriter(cmd.OutOrStdout(), out.Report)
}

// analysisOptions derives analysis options from cfg. Assets are read from
// --assets or from the directory holding the stats file.
func analysisOptions(cfg *config.Config, statsPath string) analyze.Options {
	dir := analyzeAssets
	if dir == "" {
		dir = filepath.Dir(statsPath)
	}
	return analyze.Options{
		Graph: cfg.GraphOptions(afero.NewBasePathFs(afero.NewOsFs(), dir)),
		Audit: cfg.AuditSettings(),
	}
}

// loadBaseline resolves --baseline. An empty value means no baseline, in
// which case the stats document's own baseline applies.
func loadBaseline(fs afero.Fs, source, project string) (*stats.Baseline, error) {
	switch source {
	case "":
		return nil, nil
	case "auto":
		configDir, err := config.FindConfigDir(".")
		if err != nil {
			log.Info().Msg("No .bscope directory, running without baseline")
			return nil, nil
		}
		history, err := cache.Open(configDir)
		if err != nil {
			return nil, err
		}
		defer history.Close()

		prev, err := history.LatestReport(project)
		if errors.Is(err, cache.ErrNoReports) {
			log.Info().Str("project", project).Msg("No stored report, running without baseline")
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		log.Debug().Str("baseline", prev.ID).Msg("Using stored report as baseline")
		return prev.Baseline(), nil
	default:
		prev, err := analyze.LoadReport(fs, source)
		if err != nil {
			return nil, fmt.Errorf("loading baseline: %w", err)
		}
		return prev.Baseline(), nil
	}
}

func saveHistory(cfg *config.Config, r *report.Report) {
	configDir, err := config.FindConfigDir(".")
	if err != nil {
		log.Debug().Msg("No .bscope directory, report not stored")
		return
	}
	history, err := cache.Open(configDir)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open history")
		return
	}
	defer history.Close()

	if err := history.SaveReport(r); err != nil {
		log.Warn().Err(err).Str("run_id", r.ID).Msg("Failed to store report")
		return
	}
	pruned, err := history.Prune(r.Project, cfg.History.Keep)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to prune history")
		return
	}
	log.Debug().Str("run_id", r.ID).Int64("pruned", pruned).Msg("Report stored")
}

func writeReport(path string, r *report.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := report.Encode(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeTrees(dir string, out *analyze.Output) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating tree directory: %w", err)
	}
	for name, root := range out.Trees {
		file := strings.NewReplacer("/", "_", "\\", "_").Replace(name) + ".tree.json"
		if err := writeJSON(filepath.Join(dir, file), root.Entry()); err != nil {
			return err
		}
	}
	if err := writeJSON(filepath.Join(dir, "modules.json"), out.Modules); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, "attribution.json"), out.Attribution)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
