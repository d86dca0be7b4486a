// Package report renders ranked induction lists for operators and
// downstream tools.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/kmrl/induction/internal/ranking"
)

// ErrUnsupportedFormat is returned for an unknown export format.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Format defines supported export formats.
type Format string

const (
	// FormatJSON exports the list and summary as indented JSON.
	FormatJSON Format = "json"
	// FormatCSV exports one row per rake with a header line.
	FormatCSV Format = "csv"
	// FormatYAML exports the same document as FormatJSON in YAML.
	FormatYAML Format = "yaml"
	// FormatTable renders aligned plain-text columns for terminals.
	FormatTable Format = "table"
)

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatYAML:
		return "application/yaml"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ParseFormat maps a case-insensitive name to a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatCSV, FormatYAML, FormatTable:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Row is the flattened export form of one ranked rake.
type Row struct {
	Rank      int      `json:"rank" yaml:"rank"`
	RakeID    string   `json:"rake" yaml:"rake"`
	Composite int      `json:"composite" yaml:"composite"`
	Readiness int      `json:"readiness" yaml:"readiness"`
	Branding  int      `json:"branding" yaml:"branding"`
	Mileage   int      `json:"mileage" yaml:"mileage"`
	Cleaning  int      `json:"cleaning" yaml:"cleaning"`
	Stabling  int      `json:"stabling" yaml:"stabling"`
	Status    string   `json:"status" yaml:"status"`
	HardBlock bool     `json:"hard_block" yaml:"hard_block"`
	Reasons   []string `json:"reasons" yaml:"reasons"`
}

// Document is the JSON and YAML export layout.
type Document struct {
	Summary ranking.Summary `json:"summary" yaml:"summary"`
	Rakes   []Row           `json:"rakes" yaml:"rakes"`
}

// Rows flattens a ranked list, numbering positions from 1.
func Rows(list []ranking.ScoredRake) []Row {
	rows := make([]Row, len(list))
	for i, s := range list {
		rows[i] = Row{
			Rank:      i + 1,
			RakeID:    s.Rake.ID,
			Composite: s.Composite,
			Readiness: s.Scores.Readiness,
			Branding:  s.Scores.Branding,
			Mileage:   s.Scores.Mileage,
			Cleaning:  s.Scores.Cleaning,
			Stabling:  s.Scores.Stabling,
			Status:    string(s.Status()),
			HardBlock: s.HardBlock,
			Reasons:   append([]string(nil), s.Reasons...),
		}
	}
	return rows
}

// Export renders list in the requested format.
func Export(list []ranking.ScoredRake, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return exportToJSON(list)
	case FormatCSV:
		return exportToCSV(list)
	case FormatYAML:
		return exportToYAML(list)
	case FormatTable:
		return exportToTable(list)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func document(list []ranking.ScoredRake) Document {
	return Document{Summary: ranking.Summarize(list), Rakes: Rows(list)}
}

func exportToJSON(list []ranking.ScoredRake) ([]byte, error) {
	data, err := json.MarshalIndent(document(list), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

func exportToYAML(list []ranking.ScoredRake) ([]byte, error) {
	data, err := yaml.Marshal(document(list))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return data, nil
}

var csvHeader = []string{
	"rank", "rake", "composite",
	"readiness", "branding", "mileage", "cleaning", "stabling",
	"status", "hard_block", "reasons",
}

func exportToCSV(list []ranking.ScoredRake) ([]byte, error) {
	buf := new(bytes.Buffer)
	writer := csv.NewWriter(buf)

	if err := writer.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range Rows(list) {
		row := []string{
			strconv.Itoa(r.Rank),
			r.RakeID,
			strconv.Itoa(r.Composite),
			strconv.Itoa(r.Readiness),
			strconv.Itoa(r.Branding),
			strconv.Itoa(r.Mileage),
			strconv.Itoa(r.Cleaning),
			strconv.Itoa(r.Stabling),
			r.Status,
			strconv.FormatBool(r.HardBlock),
			strings.Join(r.Reasons, "; "),
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

func exportToTable(list []ranking.ScoredRake) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := tabwriter.NewWriter(buf, 0, 0, 2, ' ', 0)

	fmt.Fprintln(w, "#\tRAKE\tSCORE\tRDY\tBRD\tMIL\tCLN\tSTB\tSTATUS\tREASONS")
	for _, r := range Rows(list) {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			r.Rank, r.RakeID, r.Composite,
			r.Readiness, r.Branding, r.Mileage, r.Cleaning, r.Stabling,
			r.Status, strings.Join(r.Reasons, "; "))
	}
	if err := w.Flush(); err != nil {
		return nil, fmt.Errorf("failed to render table: %w", err)
	}

	s := ranking.Summarize(list)
	fmt.Fprintf(buf, "\n%d ready, %d check, %d blocked\n", s.Ready, s.Check, s.Blocked)
	return buf.Bytes(), nil
}
