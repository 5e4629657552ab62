package molecule

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// RecordSeparator splits an upload line into identifier and notation.
const RecordSeparator = ":"

// maxLineBytes bounds a single upload line.
const maxLineBytes = 64 * 1024

// FormatError reports the first malformed line of a batch.  Line is 1-based
// and counts blank lines.
type FormatError struct {
	Line    int
	Message string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Message, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Unwrap exposes both ErrInvalidFileFormat and the underlying cause, so a
// *ParseError stays reachable through errors.As.
func (e *FormatError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrInvalidFileFormat, e.Err}
	}
	return []error{ErrInvalidFileFormat}
}

// Record is one parsed upload line.
type Record struct {
	Line       int
	Identifier string
	SMILES     string
	graph      *Graph
}

// Outcome summarises an applied batch.
type Outcome struct {
	Added       int      `json:"added"`
	Skipped     int      `json:"skipped"`
	Identifiers []string `json:"identifiers"`
}

// ParseRecords validates every line without touching any registry.  Blank
// lines are skipped.  The first malformed line stops the scan with a
// *FormatError.
func ParseRecords(lines []string) ([]Record, error) {
	records := make([]Record, 0, len(lines))
	for i, raw := range lines {
		lineNo := i + 1
		if strings.TrimSpace(raw) == "" {
			continue
		}
		if !utf8.ValidString(raw) {
			return nil, &FormatError{Line: lineNo, Message: "line is not valid UTF-8"}
		}
		if strings.Count(raw, RecordSeparator) != 1 {
			return nil, &FormatError{Line: lineNo, Message: "each line must be 'identifier:SMILES'"}
		}
		idPart, smilesPart, _ := strings.Cut(raw, RecordSeparator)
		id := strings.TrimSpace(idPart)
		smiles := strings.TrimSpace(smilesPart)
		if id == "" {
			return nil, &FormatError{Line: lineNo, Message: "identifier must not be empty"}
		}
		graph, err := Parse(smiles)
		if err != nil {
			return nil, &FormatError{Line: lineNo, Message: "invalid SMILES", Err: err}
		}
		records = append(records, Record{Line: lineNo, Identifier: id, SMILES: smiles, graph: graph})
	}
	return records, nil
}

// LoadBatch applies lines to the registry all-or-nothing.  Every line is
// validated and parsed before the first insertion; on error the registry is
// left exactly as it was.  An identifier already stored, or seen earlier in
// the batch, is skipped.
func (r *Registry) LoadBatch(lines []string) (Outcome, error) {
	records, err := ParseRecords(lines)
	if err != nil {
		return Outcome{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := Outcome{Identifiers: make([]string, 0, len(records))}
	fresh := make([]Entry, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		if _, stored := r.entries[rec.Identifier]; stored {
			out.Skipped++
			continue
		}
		if _, dup := seen[rec.Identifier]; dup {
			out.Skipped++
			continue
		}
		seen[rec.Identifier] = struct{}{}
		fresh = append(fresh, Entry{Identifier: rec.Identifier, SMILES: rec.SMILES, Graph: rec.graph})
	}
	for _, e := range fresh {
		r.insertLocked(e)
		out.Identifiers = append(out.Identifiers, e.Identifier)
	}
	out.Added = len(fresh)
	return out, nil
}

// ReadLines splits an upload body into lines, accepting \n and \r\n endings.
func ReadLines(rd io.Reader) ([]string, error) {
	sc := bufio.NewScanner(rd)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	var lines []string
	for sc.Scan() {
		lines = append(lines, strings.TrimSuffix(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("molecule: read upload: %w", err)
	}
	return lines, nil
}
