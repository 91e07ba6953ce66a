package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// RefError is a cross reference that points at no entity.
type RefError struct {
	// Where names the referring entity, e.g. `entrypoint "main"`.
	Where string
	// Kind is the kind of entity referred to.
	Kind string
	Ref  int
}

// Error implements the error interface.
func (e *RefError) Error() string {
	return fmt.Sprintf("%s refers to missing %s %d", e.Where, e.Kind, e.Ref)
}

// Validate checks that every ref is unique and every cross reference
// resolves. All problems are returned joined.
func (r *Report) Validate() error {
	var errs []error

	assets := make(map[int]struct{}, len(r.Assets))
	for _, a := range r.Assets {
		if _, dup := assets[a.Ref]; dup {
			errs = append(errs, fmt.Errorf("duplicate asset ref %d", a.Ref))
		}
		assets[a.Ref] = struct{}{}
	}
	chunks := make(map[int]struct{}, len(r.Chunks))
	for _, c := range r.Chunks {
		if _, dup := chunks[c.Ref]; dup {
			errs = append(errs, fmt.Errorf("duplicate chunk ref %d", c.Ref))
		}
		chunks[c.Ref] = struct{}{}
	}
	packages := make(map[int]struct{}, len(r.Packages))
	for _, p := range r.Packages {
		if _, dup := packages[p.Ref]; dup {
			errs = append(errs, fmt.Errorf("duplicate package ref %d", p.Ref))
		}
		packages[p.Ref] = struct{}{}
	}

	check := func(where, kind string, index map[int]struct{}, refs ...int) {
		for _, ref := range refs {
			if _, ok := index[ref]; !ok {
				errs = append(errs, &RefError{Where: where, Kind: kind, Ref: ref})
			}
		}
	}

	for _, a := range r.Assets {
		check(fmt.Sprintf("asset %q", a.Name), "chunk", chunks, a.Chunks...)
	}
	for _, c := range r.Chunks {
		check(fmt.Sprintf("chunk %s", c.ID), "asset", assets, c.Assets...)
	}
	for _, p := range r.Packages {
		where := fmt.Sprintf("package %q", p.Name)
		check(where, "asset", assets, p.Assets...)
		for _, is := range p.Issuers {
			check(where+" issuer", "package", packages, is.Ref)
		}
	}
	for _, ep := range r.EntryPoints {
		where := fmt.Sprintf("entrypoint %q", ep.Name)
		check(where, "chunk", chunks, ep.Chunks...)
		check(where, "chunk", chunks, ep.InitialChunks...)
		check(where, "asset", assets, ep.Assets...)
		for _, u := range ep.Packages {
			check(where, "package", packages, u.Ref)
			check(where, "asset", assets, u.Assets...)
			for _, is := range u.Issuers {
				check(where+" issuer", "package", packages, is.Ref)
			}
			for _, n := range u.Notes {
				check(where+" note", "package", packages, n.Ref)
			}
		}
	}
	return errors.Join(errs...)
}

// Encode writes r as indented JSON.
func Encode(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// Decode reads a report and validates its refs.
func Decode(rd io.Reader) (*Report, error) {
	var r Report
	if err := json.NewDecoder(rd).Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	if r.Version > SchemaVersion {
		return nil, fmt.Errorf("report schema version %d is newer than supported version %d", r.Version, SchemaVersion)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report: %w", err)
	}
	return &r, nil
}

// Marshal returns r as compact JSON.
func Marshal(r *Report) ([]byte, error) {
	return json.Marshal(r)
}

// Unmarshal decodes and validates a report from data.
func Unmarshal(data []byte) (*Report, error) {
	return Decode(bytes.NewReader(data))
}
