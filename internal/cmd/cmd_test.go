package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hargabyte/bundlescope/internal/report"
)

const esbuildStats = `{
  "family": "esbuild",
  "publicPath": "",
  "outputPath": "dist",
  "entrypoints": {"main": {"assets": ["main.js"]}},
  "assets": [{"name": "main.js", "size": 100}],
  "outputs": {
    "dist/main.js": {"bytes": 100, "inputs": {
      "node_modules/lodash/index.js": {"bytesInOutput": 60},
      "src/index.js": {"bytesInOutput": 40}
    }}
  }
}`

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
		outputFormat = ""
	})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("bscope %s failed: %v", strings.Join(args, " "), err)
	}
	return buf.String()
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	statsPath := filepath.Join(dir, "stats.json")
	if err := os.WriteFile(statsPath, []byte(esbuildStats), 0644); err != nil {
		t.Fatalf("write stats: %v", err)
	}
	reportPath := filepath.Join(dir, "report.json")
	treeDir := filepath.Join(dir, "trees")

	out := execute(t, "analyze", statsPath, "--format", "json", "--no-history",
		"--out", reportPath, "--trees", treeDir, "--project", "shop")

	if !strings.Contains(out, `"family": "esbuild"`) {
		t.Errorf("expected json report on stdout, got:\n%s", out)
	}

	f, err := os.Open(reportPath)
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()
	r, err := report.Decode(f)
	if err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if r.Project != "shop" || len(r.EntryPoints) != 1 {
		t.Errorf("unexpected report: project=%q entrypoints=%d", r.Project, len(r.EntryPoints))
	}
	if len(r.EntryPoints[0].Audits) == 0 {
		t.Error("expected audits on the entry point")
	}

	for _, name := range []string{"main.js.tree.json", "modules.json", "attribution.json"} {
		if _, err := os.Stat(filepath.Join(treeDir, name)); err != nil {
			t.Errorf("expected %s to be written: %v", name, err)
		}
	}

	// The written report serves as a baseline for the next run
	out = execute(t, "analyze", statsPath, "--format", "yaml", "--no-history", "--baseline", reportPath)
	if !strings.Contains(out, "cache-invalidation") {
		t.Errorf("expected cache invalidation audit with a baseline, got:\n%s", out)
	}
}

func TestTreeCommand(t *testing.T) {
	dir := t.TempDir()
	statsPath := filepath.Join(dir, "stats.json")
	if err := os.WriteFile(statsPath, []byte(esbuildStats), 0644); err != nil {
		t.Fatalf("write stats: %v", err)
	}

	out := execute(t, "tree", statsPath, "--asset", "main.js", "--format", "table")
	for _, want := range []string{"main.js", "lodash", "index.js"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected tree output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRulesCommand(t *testing.T) {
	out := execute(t, "rules", "--format", "json")
	for _, want := range []string{`"duplicate-libraries"`, `"cache-invalidation"`, `"weight": 3`} {
		if !strings.Contains(out, want) {
			t.Errorf("expected rules output to contain %s, got:\n%s", want, out)
		}
	}
}

func TestBuildCommandInfo(t *testing.T) {
	info := buildCommandInfo(rootCmd)
	names := make(map[string]bool)
	for _, sub := range info.Subcommands {
		names[sub.Name] = true
	}
	for _, want := range []string{"analyze", "tree", "rules", "history", "init"} {
		if !names[want] {
			t.Errorf("expected subcommand %s, got %v", want, names)
		}
	}
}
