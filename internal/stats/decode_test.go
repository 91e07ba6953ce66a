package stats

import (
	"errors"
	"strings"
	"testing"
)

const sampleStats = `{
  "publicPath": "/static/",
  "outputPath": "/build",
  "entrypoints": {
    "main": {"chunks": [0, "vendor"], "assets": ["main.js", {"name": "vendor.js", "size": 10}]},
    "admin": {"chunks": [2], "assets": [{"name": "admin.js"}]}
  },
  "assets": [
    {"name": "main.js", "size": 100, "chunks": [0], "info": {"related": {"sourceMap": "main.js.map"}}}
  ],
  "chunks": [
    {"id": 0, "files": ["main.js"], "entry": true, "initial": true},
    {"id": "vendor", "files": ["vendor.js"], "initial": true}
  ],
  "modules": [
    {"id": 7, "identifier": "/src/a.js", "name": "./src/a.js", "size": 12, "chunks": [0, "vendor"], "usedExports": ["x"]},
    {"id": "b", "identifier": "/src/b.js", "name": "./src/b.js", "size": 3, "chunks": [0], "usedExports": true}
  ],
  "packages": [{"name": "lodash", "version": "4.17.21", "sideEffects": ["*.css"]}]
}`

func TestDecode(t *testing.T) {
	doc, err := Decode(strings.NewReader(sampleStats))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if doc.Family != FamilyWebpack {
		t.Errorf("expected default family webpack, got %q", doc.Family)
	}
	if doc.PublicPathValue() != "/static/" {
		t.Errorf("unexpected public path %q", doc.PublicPathValue())
	}

	var names []string
	for pair := doc.EntryPoints.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	if strings.Join(names, ",") != "main,admin" {
		t.Errorf("entry point order not preserved: %v", names)
	}

	main, _ := doc.EntryPoints.Get("main")
	if len(main.Chunks) != 2 || !main.Chunks[0].Numeric || main.Chunks[1].Numeric {
		t.Errorf("unexpected chunk ids %+v", main.Chunks)
	}
	if main.Assets[0].Name != "main.js" || main.Assets[1].Name != "vendor.js" || main.Assets[1].Size != 10 {
		t.Errorf("unexpected entry assets %+v", main.Assets)
	}

	if got := doc.Assets[0].Info.Related.SourceMap; len(got) != 1 || got[0] != "main.js.map" {
		t.Errorf("expected single source map, got %v", got)
	}

	if len(doc.Chunks[0].Modules) != 2 || len(doc.Chunks[1].Modules) != 1 {
		t.Errorf("modules were not distributed onto chunks: %d, %d", len(doc.Chunks[0].Modules), len(doc.Chunks[1].Modules))
	}

	used := doc.Chunks[0].Modules[0].UsedExports
	if used == nil || !used.Known || len(used.Names) != 1 {
		t.Errorf("unexpected usedExports %+v", used)
	}
	if all := doc.Chunks[0].Modules[1].UsedExports; all == nil || !all.All {
		t.Errorf("expected usedExports true, got %+v", all)
	}

	se := doc.Packages[0].SideEffects
	if !se.Declared || len(se.Files) != 1 {
		t.Errorf("unexpected sideEffects %+v", se)
	}
}

func TestDecodeStructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		field string
	}{
		{"missing entrypoints", `{"publicPath": "", "assets": []}`, "entrypoints"},
		{"missing assets", `{"publicPath": "", "entrypoints": {}}`, "assets"},
		{"missing publicPath", `{"entrypoints": {}, "assets": []}`, "publicPath"},
		{"unknown family", `{"family": "parcel", "publicPath": "", "entrypoints": {}, "assets": []}`, "family"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.input))
			var se *StructuralError
			if !errors.As(err, &se) {
				t.Fatalf("expected StructuralError, got %v", err)
			}
			if se.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, se.Field)
			}
		})
	}
}

func TestIDKeepsNumericText(t *testing.T) {
	var id ID
	if err := id.UnmarshalJSON([]byte("0012")); err != nil {
		t.Fatal(err)
	}
	if id.Key() != "0012" || !id.Numeric {
		t.Errorf("expected verbatim numeric id, got %+v", id)
	}

	out, err := id.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != "0012" {
		t.Errorf("expected 0012, got %s", out)
	}

	s := StringID("12")
	if s.Key() != NumericID(12).Key() {
		t.Errorf("string and numeric ids with the same text must share a key")
	}
}
