// Package dataset loads and serves the immutable master reference table.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Split partitions master records between the two leaderboards.
type Split string

// Known splits.
const (
	SplitPublic  Split = "public"
	SplitPrivate Split = "private"
)

// Record is one labeled row of the master dataset.
type Record struct {
	ID    int64
	Label int // 0 or 1
	Split Split
}

// Master is the reference table loaded once at startup. Immutable for the
// process lifetime; every submission is scored against the same snapshot.
type Master struct {
	records []Record
	byID    map[int64]int // index into records
	public  []Record
	private []Record
}

// Load reads the master CSV. Expected layout: header "id,label,split"
// followed by one record per row. Ids must be unique.
func Load(r io.Reader) (*Master, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if strings.TrimSpace(header[0]) != "id" ||
		strings.TrimSpace(header[1]) != "label" ||
		strings.TrimSpace(header[2]) != "split" {
		return nil, fmt.Errorf("%w: got %q", ErrBadHeader, header)
	}

	m := &Master{byID: make(map[int64]int)}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrBadRow, line, err)
		}

		id, err := strconv.ParseInt(strings.TrimSpace(row[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad id %q", ErrBadRow, line, row[0])
		}
		label, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil || (label != 0 && label != 1) {
			return nil, fmt.Errorf("%w: line %d: bad label %q", ErrBadRow, line, row[1])
		}
		split := Split(strings.TrimSpace(row[2]))
		if split != SplitPublic && split != SplitPrivate {
			return nil, fmt.Errorf("%w: line %d: bad split %q", ErrBadRow, line, row[2])
		}
		if _, dup := m.byID[id]; dup {
			return nil, fmt.Errorf("%w: id %d", ErrDuplicateID, id)
		}

		m.byID[id] = len(m.records)
		m.records = append(m.records, Record{ID: id, Label: label, Split: split})
	}

	if len(m.records) == 0 {
		return nil, ErrEmpty
	}

	for _, rec := range m.records {
		if rec.Split == SplitPublic {
			m.public = append(m.public, rec)
		} else {
			m.private = append(m.private, rec)
		}
	}
	return m, nil
}

// LoadFile loads the master dataset from a CSV file on disk.
func LoadFile(path string) (*Master, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open master data: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Contains reports whether id exists in the master dataset.
func (m *Master) Contains(id int64) bool {
	_, ok := m.byID[id]
	return ok
}

// Records returns the records belonging to split. Callers must not mutate
// the returned slice.
func (m *Master) Records(split Split) []Record {
	if split == SplitPublic {
		return m.public
	}
	return m.private
}

// Len returns the total number of master records.
func (m *Master) Len() int { return len(m.records) }

// Positives returns how many master records carry label 1.
func (m *Master) Positives() int {
	n := 0
	for _, rec := range m.records {
		if rec.Label == 1 {
			n++
		}
	}
	return n
}
