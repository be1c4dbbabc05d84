// Package auditlog keeps an append-only CSV history of verify findings.
package auditlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tallybooks/tally/internal/verify"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp time.Time
	RunID     string
	Kind      verify.Kind
	Repaired  bool
	Subject   string
	Detail    string
	Paths     []string
}

// Header is the CSV header of the audit log.
const Header = "timestamp,run_id,kind,repaired,subject,detail,paths"

const (
	numFields    = 7
	colTimestamp = 0
	colRunID     = 1
	colKind      = 2
	colRepaired  = 3
	colSubject   = 4
	colDetail    = 5
	colPaths     = 6

	pathSep = ";"
)

// FromReport turns the findings of one verify pass into entries sharing a
// run id and timestamp.
func FromReport(runID string, at time.Time, r verify.Report) []Entry {
	entries := make([]Entry, 0, len(r.Warnings))
	for _, w := range r.Warnings {
		entries = append(entries, Entry{
			Timestamp: at,
			RunID:     runID,
			Kind:      w.Kind,
			Repaired:  w.Repaired,
			Subject:   w.Subject,
			Detail:    w.Detail,
			Paths:     w.Paths,
		})
	}
	return entries
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colKind] = string(e.Kind)
	row[colRepaired] = strconv.FormatBool(e.Repaired)
	row[colSubject] = e.Subject
	row[colDetail] = e.Detail
	row[colPaths] = strings.Join(e.Paths, pathSep)
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	repaired, err := strconv.ParseBool(record[colRepaired])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing repaired %q: %w", record[colRepaired], err)
	}
	var paths []string
	if record[colPaths] != "" {
		paths = strings.Split(record[colPaths], pathSep)
	}

	return Entry{
		Timestamp: ts,
		RunID:     record[colRunID],
		Kind:      verify.Kind(record[colKind]),
		Repaired:  repaired,
		Subject:   record[colSubject],
		Detail:    record[colDetail],
		Paths:     paths,
	}, nil
}

// Append writes entries to the log at path, creating the file, its
// directory and the header if needed.
func Append(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating log dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Read returns all entries of the log at path, or nothing if it does not
// exist yet.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
