package output

import (
	"strings"
	"testing"

	"github.com/hargabyte/bundlescope/internal/audit"
	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/report"
	"github.com/hargabyte/bundlescope/internal/tree"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"table", FormatTable, false},
		{"", FormatTable, false},
		{"YAML", FormatYAML, false},
		{"yml", FormatYAML, false},
		{" json ", FormatJSON, false},
		{"cgf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestGetFormatter(t *testing.T) {
	for _, f := range []Format{FormatTable, FormatYAML, FormatJSON} {
		if _, err := GetFormatter(f); err != nil {
			t.Errorf("GetFormatter(%s) failed: %v", f, err)
		}
	}
	if _, err := GetFormatter("xml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func sampleReport() *report.Report {
	ns := 0.25
	return &report.Report{
		Version: report.SchemaVersion,
		ID:      "run",
		Project: "shop",
		Family:  "webpack",
		Score:   72,
		EntryPoints: []report.EntryPoint{{
			Name:   "main",
			Score:  72,
			Size:   bundle.Size{Raw: 2048, Gzip: 700},
			Assets: []int{0},
			Audits: []bundle.AuditResult{
				{ID: "duplicate-libraries", Title: "Avoid duplicate libraries", Score: bundle.LevelBad, Weight: 3, NumericScore: &ns},
				{ID: "source-maps", Title: "Ship source maps", Score: bundle.LevelGood, Weight: 0},
			},
		}},
	}
}

func TestTableReport(t *testing.T) {
	out, err := NewTableFormatter().Format(sampleReport())
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	for _, want := range []string{"shop: webpack build, score 72", "ENTRYPOINT", "main", "2.0 KiB", "duplicate-libraries", "25%", "Bad", "source-maps"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func sampleTree() *tree.Node {
	return tree.Build("main.js", []*bundle.Module{
		{Key: "1", Name: "./src/app/index.js", Size: bundle.Size{Raw: 300}},
		{Key: "2", Name: "./src/app/util.js", Size: bundle.Size{Raw: 100}},
		{Key: "3", Name: "./node_modules/react/index.js", Size: bundle.Size{Raw: 5000}},
	})
}

func TestTableTree(t *testing.T) {
	f := NewTableFormatter()
	out, err := f.Format(sampleTree())
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	for _, want := range []string{"main.js", "index.js", "util.js", "react"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
	// Largest subtree is printed first
	if strings.Index(out, "react") > strings.Index(out, "util.js") {
		t.Errorf("expected react before util.js:\n%s", out)
	}

	f.MaxDepth = 1
	out, err = f.Format(sampleTree())
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if strings.Contains(out, "util.js") {
		t.Errorf("expected depth limit to hide leaves:\n%s", out)
	}
}

func TestStructuredTree(t *testing.T) {
	y, err := NewYAMLFormatter().Format(sampleTree())
	if err != nil {
		t.Fatalf("YAML failed: %v", err)
	}
	if !strings.Contains(y, "name: main.js") {
		t.Errorf("expected yaml tree snapshot, got:\n%s", y)
	}

	j, err := NewJSONFormatter().Format(sampleTree())
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	if !strings.Contains(j, `"name": "main.js"`) {
		t.Errorf("expected json tree snapshot, got:\n%s", j)
	}
}

func TestTableRules(t *testing.T) {
	out, err := NewTableFormatter().Format([]audit.Descriptor{
		{ID: "large-assets", Title: "Keep initial assets small", Weight: 2, Source: "builtin"},
		{ID: "no-polyfills", Weight: 1.5, Source: "rules/polyfills.js"},
	})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	for _, want := range []string{"large-assets", "1.5", "rules/polyfills.js"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestTableFallsBackToJSON(t *testing.T) {
	out, err := NewTableFormatter().Format(map[string]int{"count": 3})
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !strings.Contains(out, `"count": 3`) {
		t.Errorf("expected JSON fallback, got %s", out)
	}
}
