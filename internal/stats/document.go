// Package stats models the decoded build statistics document emitted by a
// JavaScript bundler and validates its mandatory structure.
package stats

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Family selects the extraction and aggregation strategy for a document.
type Family string

const (
	// FamilyWebpack emits classic module-wrapper bundles whose module
	// boundaries must be recovered from the asset text.
	FamilyWebpack Family = "webpack"
	// FamilyEsbuild reports exact per-input byte sizes in its metafile.
	FamilyEsbuild Family = "esbuild"
	// FamilyRollup reports rendered length and rendered code per input.
	FamilyRollup Family = "rollup"
)

// Families lists every supported family.
var Families = []Family{FamilyWebpack, FamilyEsbuild, FamilyRollup}

// Valid reports whether f is a supported family.
func (f Family) Valid() bool {
	for _, known := range Families {
		if f == known {
			return true
		}
	}
	return false
}

// SizeReport reports whether the family carries exact sizes instead of
// embedding module wrappers.
func (f Family) SizeReport() bool {
	return f == FamilyEsbuild || f == FamilyRollup
}

// Document is one decoded stats payload.
type Document struct {
	Family      Family                                     `json:"family"`
	OutputPath  string                                     `json:"outputPath"`
	PublicPath  *string                                    `json:"publicPath"`
	EntryPoints *orderedmap.OrderedMap[string, EntryPoint] `json:"entrypoints"`
	Assets      []Asset                                    `json:"assets"`
	Chunks      []Chunk                                    `json:"chunks"`
	Modules     []Module                                   `json:"modules"`
	Outputs     *orderedmap.OrderedMap[string, Output]     `json:"outputs,omitempty"`
	Inputs      map[string]Input                           `json:"inputs,omitempty"`
	Packages    []PackageVersion                           `json:"packages,omitempty"`
	Baseline    *Baseline                                  `json:"baseline,omitempty"`
	Flags       Flags                                      `json:"flags"`
}

// EntryPoint is a named root of the chunk graph.
type EntryPoint struct {
	Chunks []ID         `json:"chunks"`
	Assets []EntryAsset `json:"assets"`
}

// EntryAsset names an asset of an entry point. Older bundler versions emit a
// bare string, newer ones an object with the asset size.
type EntryAsset struct {
	Name string `json:"name"`
	Size int64  `json:"size,omitempty"`
}

// UnmarshalJSON accepts a string or a {name,size} object.
func (a *EntryAsset) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &a.Name)
	}
	type plain EntryAsset
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*a = EntryAsset(p)
	return nil
}

// Asset is one emitted output file.
type Asset struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	Chunks     []ID      `json:"chunks"`
	ChunkNames []string  `json:"chunkNames,omitempty"`
	Emitted    bool      `json:"emitted,omitempty"`
	Info       AssetInfo `json:"info"`
}

// AssetInfo carries bundler annotations on an asset.
type AssetInfo struct {
	Development  bool         `json:"development,omitempty"`
	Intermediate bool         `json:"intermediate,omitempty"`
	Minimized    bool         `json:"minimized,omitempty"`
	Related      RelatedFiles `json:"related"`
}

// RelatedFiles lists companion files of an asset.
type RelatedFiles struct {
	SourceMap StringList `json:"sourceMap,omitempty"`
}

// StringList decodes either a single string or a list of strings.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = StringList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*l = list
	return nil
}

// Chunk is one bundler chunk.
type Chunk struct {
	ID             ID       `json:"id"`
	Names          []string `json:"names,omitempty"`
	Files          []string `json:"files"`
	AuxiliaryFiles []string `json:"auxiliaryFiles,omitempty"`
	Entry          bool     `json:"entry"`
	Initial        bool     `json:"initial"`
	Children       []ID     `json:"children,omitempty"`
	Parents        []ID     `json:"parents,omitempty"`
	Modules        []Module `json:"modules,omitempty"`
	Hash           string   `json:"hash,omitempty"`
}

// Module is one bundled source unit as reported by the bundler.
type Module struct {
	ID                  *ID          `json:"id,omitempty"`
	Identifier          string       `json:"identifier"`
	Name                string       `json:"name"`
	Size                int64        `json:"size"`
	ModuleType          string       `json:"moduleType,omitempty"`
	Chunks              []ID         `json:"chunks,omitempty"`
	Reasons             []Reason     `json:"reasons,omitempty"`
	Modules             []Module     `json:"modules,omitempty"`
	UsedExports         *UsedExports `json:"usedExports,omitempty"`
	ProvidedExports     []string     `json:"providedExports,omitempty"`
	OptimizationBailout []string     `json:"optimizationBailout,omitempty"`
}

// Reason explains why a module was included.
type Reason struct {
	ModuleID         *ID    `json:"moduleId,omitempty"`
	ModuleIdentifier string `json:"moduleIdentifier,omitempty"`
	ModuleName       string `json:"moduleName,omitempty"`
	ResolvedModule   string `json:"resolvedModule,omitempty"`
	Type             string `json:"type"`
	UserRequest      string `json:"userRequest,omitempty"`
	Loc              string `json:"loc,omitempty"`
}

// UsedExports is either a boolean (all or nothing is used) or the list of
// export names the bundler proved to be used.
type UsedExports struct {
	All   bool
	Known bool
	Names []string
}

// UnmarshalJSON implements json.Unmarshaler.
func (u *UsedExports) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("true")):
		*u = UsedExports{All: true, Known: true}
	case bytes.Equal(data, []byte("false")):
		*u = UsedExports{Known: true}
	case bytes.Equal(data, []byte("null")):
		*u = UsedExports{}
	default:
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return err
		}
		*u = UsedExports{Known: true, Names: names}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (u UsedExports) MarshalJSON() ([]byte, error) {
	switch {
	case !u.Known:
		return []byte("null"), nil
	case u.Names != nil:
		return json.Marshal(u.Names)
	default:
		return json.Marshal(u.All)
	}
}

// Output is size-report metadata for one emitted file.
type Output struct {
	Bytes      int64                                       `json:"bytes"`
	EntryPoint string                                      `json:"entryPoint,omitempty"`
	Imports    []OutputImport                              `json:"imports,omitempty"`
	Inputs     *orderedmap.OrderedMap[string, OutputInput] `json:"inputs"`
}

// OutputImport is an import edge between outputs.
type OutputImport struct {
	Path string `json:"path"`
	Kind string `json:"kind"`
}

// OutputInput is the contribution of one input file to an output.
type OutputInput struct {
	BytesInOutput  int64   `json:"bytesInOutput,omitempty"`
	RenderedLength int64   `json:"renderedLength,omitempty"`
	Code           *string `json:"code,omitempty"`
}

// Input is metadata for one source input of a size-report build.
type Input struct {
	Bytes   int64         `json:"bytes"`
	Format  string        `json:"format,omitempty"`
	Imports []InputImport `json:"imports,omitempty"`
}

// InputImport is an import edge between inputs.
type InputImport struct {
	Path     string `json:"path"`
	Kind     string `json:"kind"`
	Original string `json:"original,omitempty"`
}

// PackageVersion declares the installed version of a package.
type PackageVersion struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Path        string      `json:"path,omitempty"`
	SideEffects SideEffects `json:"sideEffects"`
}

// SideEffects is the package.json "sideEffects" field: a boolean or a list of
// file globs.
type SideEffects struct {
	Declared bool
	Value    bool
	Files    []string
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *SideEffects) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = SideEffects{}
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*s = SideEffects{Declared: true, Value: data[0] == 't'}
	default:
		var files []string
		if err := json.Unmarshal(data, &files); err != nil {
			return fmt.Errorf("sideEffects: %w", err)
		}
		*s = SideEffects{Declared: true, Value: true, Files: files}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s SideEffects) MarshalJSON() ([]byte, error) {
	switch {
	case !s.Declared:
		return []byte("null"), nil
	case s.Files != nil:
		return json.Marshal(s.Files)
	default:
		return json.Marshal(s.Value)
	}
}

// MarshalYAML implements yaml.Marshaler with the same shape as MarshalJSON.
func (s SideEffects) MarshalYAML() (any, error) {
	switch {
	case !s.Declared:
		return nil, nil
	case s.Files != nil:
		return s.Files, nil
	default:
		return s.Value, nil
	}
}

// Baseline is the asset set of a previous build, used to score cache
// invalidation.
type Baseline struct {
	Assets      []BaselineAsset     `json:"assets"`
	EntryPoints map[string][]string `json:"entrypoints,omitempty"`
}

// BaselineAsset is one asset of the baseline build.
type BaselineAsset struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Hash string `json:"hash,omitempty"`
}

// Flags toggles optional behaviour of the graph builder.
type Flags struct {
	IncludeAuxiliaryFiles bool `json:"includeAuxiliaryFiles,omitempty"`
	HTMLExclusiveInitial  bool `json:"htmlExclusiveInitial,omitempty"`
	StrictChunkRelations  bool `json:"strictChunkRelations,omitempty"`
}
