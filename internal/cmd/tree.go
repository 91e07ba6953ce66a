package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/hargabyte/bundlescope/internal/analyze"
	"github.com/hargabyte/bundlescope/internal/output"
)

// treeCmd represents the tree command
var treeCmd = &cobra.Command{
	Use:   "tree <stats.json>",
	Short: "Print the module size tree of one asset",
	Long: `Print the modules of one script asset as a directory tree with raw, gzip and
brotli sizes. Directories with a single child are collapsed into one node and
siblings are ordered by size.

Flags:
  --asset NAME   Asset to print (required)
  --path P       Print only the subtree at P, e.g. node_modules/react
  --depth N      Limit table output to N levels (default: unlimited)

Examples:
  bscope tree dist/stats.json --asset main.js
  bscope tree stats.json --assets dist --asset vendor.js --depth 2
  bscope tree stats.json --asset main.js --path node_modules --format yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runTree,
}

var (
	treeAsset string
	treePath  string
	treeDepth int
)

func init() {
	rootCmd.AddCommand(treeCmd)

	treeCmd.Flags().StringVar(&treeAsset, "asset", "", "Asset name")
	treeCmd.Flags().StringVar(&treePath, "path", "", "Only print the subtree at this path")
	treeCmd.Flags().IntVar(&treeDepth, "depth", 0, "Maximum depth of table output")
	treeCmd.Flags().StringVar(&analyzeAssets, "assets", "", "Directory holding the emitted assets (default: stats file directory)")
	_ = treeCmd.MarkFlagRequired("asset")
}

func runTree(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	formatter, err := formatterFor(cfg)
	if err != nil {
		return err
	}
	if tf, ok := formatter.(*output.TableFormatter); ok {
		tf.MaxDepth = treeDepth
	}

	doc, err := analyze.LoadStats(afero.NewOsFs(), args[0])
	if err != nil {
		return err
	}

	opts := analysisOptions(cfg, args[0])
	opts.SkipAudits = true
	out, err := analyze.Run(cmd.Context(), doc, opts)
	if err != nil {
		return err
	}

	root, ok := out.Trees[treeAsset]
	if !ok {
		names := make([]string, 0, len(out.Trees))
		for name := range out.Trees {
			names = append(names, name)
		}
		sort.Strings(names)
		return fmt.Errorf("no module tree for asset %q (available: %s)", treeAsset, strings.Join(names, ", "))
	}

	if treePath != "" {
		sub := root.Find(treePath)
		if sub == nil {
			return fmt.Errorf("path %q not found in %s", treePath, treeAsset)
		}
		root = sub
	}

	return formatter.FormatToWriter(cmd.OutOrStdout(), root)
}
