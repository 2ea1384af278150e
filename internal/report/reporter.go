package report

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"
)

// MaxPromptRows bounds the rows included in the dataset description.
const MaxPromptRows = 200

// ErrNoData is returned for a request without columns.
var ErrNoData = errors.New("report requires at least one column")

// Request is the data a report is generated from.
type Request struct {
	Query   string   `json:"query"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	Graphs  []string `json:"graphs"`
	Author  string   `json:"author"`
	Title   string   `json:"title"`
}

// Reporter builds prompts, calls a Generator and structures its answer.
type Reporter struct {
	gen      Generator
	logger   *slog.Logger
	now      func() time.Time
	graphDir string
}

// ReporterOption configures a Reporter.
type ReporterOption func(*Reporter)

// WithGraphDir resolves graph paths relative to dir. Paths that are absolute
// or leave dir are never looked up. Without a graph directory every graph is
// reported unavailable.
func WithGraphDir(dir string) ReporterOption {
	return func(r *Reporter) {
		r.graphDir = dir
	}
}

// NewReporter creates a reporter backed by gen.
func NewReporter(gen Generator, logger *slog.Logger, opts ...ReporterOption) *Reporter {
	r := &Reporter{gen: gen, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generate produces a report for req.
func (r *Reporter) Generate(ctx context.Context, req Request) (*Report, error) {
	if len(req.Columns) == 0 {
		return nil, ErrNoData
	}

	prompt := BuildPrompt(req)
	text, err := r.gen.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	text = strings.TrimSpace(text)

	title := req.Title
	if title == "" {
		title = "Report"
	}

	rep := &Report{
		Title:       title,
		Author:      req.Author,
		GeneratedAt: r.now(),
		Query:       req.Query,
		Model:       r.gen.Model(),
		Sections:    ParseSections(text),
		Attachments: r.attachments(req.Graphs),
		Text:        text,
	}
	r.logger.Info("report generated", "title", title, "sections", len(rep.Sections), "attachments", len(rep.Attachments))
	return rep, nil
}

// BuildPrompt asks for a plain-text executive report over the dataset.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Analyze the following dataset and generate a clean, structured, executive-level report based on the query.\n\n")
	b.WriteString("### Dataset:\n")
	b.WriteString(DescribeDataset(req.Columns, req.Rows, MaxPromptRows))
	b.WriteString("\n### Query:\n")
	b.WriteString(req.Query)
	b.WriteString("\n\n### Output Style:\n")
	b.WriteString("- Executive summary\n")
	b.WriteString("- Key observations\n")
	b.WriteString("- Patterns (spikes, dips, trends)\n")
	b.WriteString("- Conclusions & recommendations\n\n")
	b.WriteString("Return a clean plain-text report only, no markdown or special formatting.\n")
	return b.String()
}

// DescribeDataset renders up to limit rows as an aligned text table.
func DescribeDataset(columns []string, rows [][]any, limit int) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(columns, "\t"))
	for i, row := range rows {
		if i == limit {
			break
		}
		cells := make([]string, len(columns))
		for j := range columns {
			if j < len(row) {
				cells[j] = formatCell(row[j])
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	if len(rows) > limit {
		fmt.Fprintf(&b, "... %d more rows\n", len(rows)-limit)
	}
	return b.String()
}

func formatCell(v any) string {
	if v == nil {
		return "NULL"
	}
	s := fmt.Sprint(v)
	return strings.NewReplacer("\t", " ", "\n", " ").Replace(s)
}

var headingPrefixes = []string{"executive summary", "key observations", "conclusion", "recommendation"}

// ParseSections splits report text into sections. A line is a heading when
// it starts with a known section name or ends with a colon.
func ParseSections(text string) []Section {
	var sections []Section
	var cur *Section

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isHeading(line) {
			sections = append(sections, Section{Title: strings.TrimSuffix(line, ":"), Paragraphs: []string{}})
			cur = &sections[len(sections)-1]
			continue
		}
		if cur == nil {
			sections = append(sections, Section{Paragraphs: []string{}})
			cur = &sections[len(sections)-1]
		}
		cur.Paragraphs = append(cur.Paragraphs, line)
	}
	return sections
}

func isHeading(line string) bool {
	lower := strings.ToLower(line)
	for _, p := range headingPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return strings.HasSuffix(line, ":")
}

// attachments checks each graph path inside the graph directory. Lookups go
// through os.Root, so symlinks cannot reach files outside it either.
func (r *Reporter) attachments(paths []string) []Attachment {
	if len(paths) == 0 {
		return nil
	}

	var root *os.Root
	rootErr := "graph directory not configured"
	if r.graphDir != "" {
		var err error
		root, err = os.OpenRoot(r.graphDir)
		if err != nil {
			r.logger.Warn("graph directory unavailable", "dir", r.graphDir, "error", err)
			rootErr = "graph directory unavailable"
		} else {
			defer root.Close()
		}
	}

	out := make([]Attachment, 0, len(paths))
	for _, p := range paths {
		a := Attachment{Path: p}
		switch {
		case root == nil:
			a.Error = rootErr
		case !filepath.IsLocal(p):
			a.Error = "outside the graph directory"
		default:
			info, err := root.Stat(p)
			switch {
			case errors.Is(err, fs.ErrNotExist):
				a.Error = "not found"
			case err != nil:
				a.Error = "unavailable"
			case info.IsDir():
				a.Error = "is a directory"
			default:
				a.Available = true
			}
		}
		out = append(out, a)
	}
	return out
}
