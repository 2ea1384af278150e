// Package report produces narrative analysis reports of query results.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Header is the heading of every rendered report.
const Header = "Executive Data Analysis Report"

// Report is a generated analysis of a query result.
type Report struct {
	Title       string       `json:"title"`
	Author      string       `json:"author,omitempty"`
	GeneratedAt time.Time    `json:"generated_at"`
	Query       string       `json:"query"`
	Model       string       `json:"model"`
	Sections    []Section    `json:"sections"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Text        string       `json:"text"`
}

// Section is a titled block of report text. The first section may be
// untitled when the model writes a preamble.
type Section struct {
	Title      string   `json:"title,omitempty"`
	Paragraphs []string `json:"paragraphs"`
}

// Attachment is a graph image referenced by the report.
type Attachment struct {
	Path      string `json:"path"`
	Available bool   `json:"available"`
	Error     string `json:"error,omitempty"`
}

// WriteJSON writes the report as JSON.
func WriteJSON(report *Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON reads a report from a JSON file.
func ReadJSON(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	r := &Report{}
	if err := json.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return r, nil
}

// WriteText writes the report as human-readable text.
func WriteText(report *Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(path, []byte(FormatText(report)), 0o644)
}

// FormatText renders the report as human-readable text.
func FormatText(report *Report) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("=== %s ===\n", Header))
	if report.Title != "" {
		b.WriteString(report.Title + "\n")
	}
	if report.Author != "" {
		b.WriteString(fmt.Sprintf("Author: %s\n", report.Author))
	}
	b.WriteString(fmt.Sprintf("Generated on: %s\n\n", report.GeneratedAt.Format("January 02, 2006")))

	for _, s := range report.Sections {
		if s.Title != "" {
			b.WriteString(s.Title + "\n")
			b.WriteString(strings.Repeat("-", len(s.Title)) + "\n")
		}
		for _, p := range s.Paragraphs {
			b.WriteString(p + "\n")
		}
		b.WriteString("\n")
	}

	if len(report.Attachments) > 0 {
		b.WriteString("Visual Summaries:\n")
		for _, a := range report.Attachments {
			if a.Available {
				b.WriteString(fmt.Sprintf("  %s\n", a.Path))
			} else {
				b.WriteString(fmt.Sprintf("  %s (unavailable: %s)\n", a.Path, a.Error))
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Generated by AI\n")
	return b.String()
}
