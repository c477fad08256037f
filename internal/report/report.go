// Package report renders verified paragraphs into the final research report
// and encodes the structured paragraph log that backs it.
package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Header is the fixed first line of every rendered report.
const Header = "# Research Report"

// Paragraph is one unit of report text and the citation identifiers that
// support it.
type Paragraph struct {
	Text    string   `json:"text"`
	CiteIDs []string `json:"citeIds"`
}

// Render produces the report document: the header, a blank line, then one
// line per paragraph with its citation group appended.
//
// A paragraph with no citation identifiers renders bare. The renderer does
// not pretend such a paragraph is cited; the audit is what flags it.
func Render(paras []Paragraph) string {
	lines := make([]string, 0, len(paras))
	for _, p := range paras {
		if len(p.CiteIDs) == 0 {
			lines = append(lines, p.Text)
			continue
		}
		lines = append(lines, fmt.Sprintf("%s (%s)", p.Text, strings.Join(p.CiteIDs, ", ")))
	}
	return Header + "\n\n" + strings.Join(lines, "\n")
}

// EncodeLog writes one compact JSON record per paragraph to w.
func EncodeLog(w io.Writer, paras []Paragraph) error {
	enc := json.NewEncoder(w)
	for i, p := range paras {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("report: encode paragraph %d: %w", i, err)
		}
	}
	return nil
}

// DecodeLog reads a JSONL paragraph stream written by EncodeLog. Blank
// lines are skipped.
func DecodeLog(r io.Reader) ([]Paragraph, error) {
	var paras []Paragraph
	line := 0

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}
		var p Paragraph
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("report: decode paragraph at line %d: %w", line, err)
		}
		paras = append(paras, p)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("report: read paragraph log: %w", err)
	}
	return paras, nil
}
