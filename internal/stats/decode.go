package stats

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// Decode reads a stats document, normalizes it and validates its mandatory
// structure. A *StructuralError is returned when a required field is missing.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding stats: %w", err)
	}
	doc.Normalize()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Normalize fills defaults and distributes top-level modules onto their
// chunks when the chunks themselves carry no module lists.
func (d *Document) Normalize() {
	if d.Family == "" {
		d.Family = FamilyWebpack
	}
	d.distributeModules()
}

func (d *Document) distributeModules() {
	if len(d.Modules) == 0 {
		return
	}
	for _, c := range d.Chunks {
		if len(c.Modules) > 0 {
			return
		}
	}
	byKey := make(map[string]int, len(d.Chunks))
	for i, c := range d.Chunks {
		byKey[c.ID.Key()] = i
	}
	for _, m := range d.Modules {
		for _, id := range m.Chunks {
			if i, ok := byKey[id.Key()]; ok {
				d.Chunks[i].Modules = append(d.Chunks[i].Modules, m)
			}
		}
	}
}

// Validate checks the mandatory top-level fields.
func (d *Document) Validate() error {
	if !d.Family.Valid() {
		return &StructuralError{Field: "family", Reason: fmt.Sprintf("unsupported family %q", d.Family)}
	}
	if d.EntryPoints == nil {
		return &StructuralError{Field: "entrypoints"}
	}
	if d.Assets == nil {
		return &StructuralError{Field: "assets"}
	}
	if d.PublicPath == nil {
		return &StructuralError{Field: "publicPath"}
	}
	return nil
}

// ChunkByID returns the chunk with the given id.
func (d *Document) ChunkByID(id ID) (*Chunk, bool) {
	for i := range d.Chunks {
		if d.Chunks[i].ID.Key() == id.Key() {
			return &d.Chunks[i], true
		}
	}
	return nil, false
}

// PublicPathValue returns the public path or the empty string.
func (d *Document) PublicPathValue() string {
	if d.PublicPath == nil {
		return ""
	}
	return *d.PublicPath
}
