package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/hargabyte/bundlescope/internal/audit"
	"github.com/hargabyte/bundlescope/internal/bundle"
	"github.com/hargabyte/bundlescope/internal/cache"
	"github.com/hargabyte/bundlescope/internal/report"
	"github.com/hargabyte/bundlescope/internal/tree"
)

// TableData represents tabular data for table output
type TableData struct {
	Headers []string
	Rows    [][]string
}

// TableFormatter renders known values as aligned tables. Values it has no
// layout for are written as JSON.
type TableFormatter struct {
	NoHeaders bool
	// MaxDepth limits module tree output; zero prints every level.
	MaxDepth int
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter() *TableFormatter {
	return &TableFormatter{}
}

// Format renders v as tables.
func (f *TableFormatter) Format(v any) (string, error) {
	return formatString(f, v)
}

// FormatToWriter writes table output to a writer.
func (f *TableFormatter) FormatToWriter(w io.Writer, v any) error {
	switch x := v.(type) {
	case *report.Report:
		return f.writeReport(w, x)
	case *tree.Node:
		e := x.Entry()
		return f.writeTree(w, &e)
	case tree.Entry:
		return f.writeTree(w, &x)
	case []audit.Descriptor:
		f.writeRules(w, x)
		return nil
	case []cache.Entry:
		f.writeHistory(w, x)
		return nil
	case TableData:
		f.PrintTable(w, x)
		return nil
	default:
		return NewJSONFormatter().FormatToWriter(w, v)
	}
}

// PrintTable prints formatted table output
func (f *TableFormatter) PrintTable(w io.Writer, data TableData) {
	table := tablewriter.NewWriter(w)

	if !f.NoHeaders && len(data.Headers) > 0 {
		table.SetHeader(data.Headers)
	}

	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("\t")
	table.SetNoWhiteSpace(true)

	table.AppendBulk(data.Rows)
	table.Render()
}

func bytesOf(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(n))
}

func (f *TableFormatter) writeReport(w io.Writer, r *report.Report) error {
	header := fmt.Sprintf("%s build, score %d", r.Family, r.Score)
	if r.Project != "" {
		header = r.Project + ": " + header
	}
	if _, err := fmt.Fprintf(w, "%s\n\n", header); err != nil {
		return err
	}

	entries := TableData{Headers: []string{"Entrypoint", "Score", "Size", "Gzip", "Initial", "Assets", "Packages"}}
	for _, ep := range r.EntryPoints {
		entries.Rows = append(entries.Rows, []string{
			ep.Name,
			strconv.Itoa(ep.Score),
			bytesOf(ep.Size.Raw),
			bytesOf(ep.Size.Gzip),
			bytesOf(ep.InitialSize.Raw),
			strconv.Itoa(len(ep.Assets)),
			strconv.Itoa(len(ep.Packages)),
		})
	}
	f.PrintTable(w, entries)

	for _, ep := range r.EntryPoints {
		if len(ep.Audits) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "\n%s\n", ep.Name); err != nil {
			return err
		}
		audits := TableData{Headers: []string{"Rule", "Level", "Score", "Weight", "Title"}}
		for _, a := range ep.Audits {
			audits.Rows = append(audits.Rows, []string{
				a.ID,
				string(a.Score),
				numericScore(a),
				strconv.FormatFloat(a.Weight, 'g', -1, 64),
				a.Title,
			})
		}
		f.PrintTable(w, audits)
	}
	return nil
}

func numericScore(a bundle.AuditResult) string {
	if a.NumericScore == nil {
		return "-"
	}
	return strconv.Itoa(int(*a.NumericScore*100+0.5)) + "%"
}

func (f *TableFormatter) writeTree(w io.Writer, root *tree.Entry) error {
	data := TableData{Headers: []string{"Module", "Size", "Gzip", "Brotli"}}
	var visit func(e *tree.Entry, depth int)
	visit = func(e *tree.Entry, depth int) {
		name := e.Name
		if len(e.Concatenated) > 0 {
			name += fmt.Sprintf(" (+%d concatenated)", len(e.Concatenated))
		}
		data.Rows = append(data.Rows, []string{
			strings.Repeat("  ", depth) + name,
			bytesOf(e.Size.Raw),
			bytesOf(e.Size.Gzip),
			bytesOf(e.Size.Brotli),
		})
		if f.MaxDepth > 0 && depth >= f.MaxDepth {
			return
		}
		for i := range e.Children {
			visit(&e.Children[i], depth+1)
		}
	}
	visit(root, 0)
	f.PrintTable(w, data)
	return nil
}

func (f *TableFormatter) writeRules(w io.Writer, rules []audit.Descriptor) {
	data := TableData{Headers: []string{"ID", "Weight", "Source", "Title"}}
	for _, r := range rules {
		data.Rows = append(data.Rows, []string{
			r.ID,
			strconv.FormatFloat(r.Weight, 'g', -1, 64),
			r.Source,
			r.Title,
		})
	}
	f.PrintTable(w, data)
}

func (f *TableFormatter) writeHistory(w io.Writer, entries []cache.Entry) {
	data := TableData{Headers: []string{"ID", "Project", "Family", "Generated", "Score"}}
	for _, e := range entries {
		data.Rows = append(data.Rows, []string{
			e.ID,
			e.Project,
			string(e.Family),
			humanize.Time(e.GeneratedAt),
			strconv.Itoa(e.Score),
		})
	}
	f.PrintTable(w, data)
}

// snapshot replaces values holding unexported state by their serializable
// form.
func snapshot(v any) any {
	if n, ok := v.(*tree.Node); ok {
		return n.Entry()
	}
	return v
}
