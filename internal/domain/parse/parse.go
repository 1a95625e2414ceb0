// Package parse turns raw submission files into normalized id sets.
package parse

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// PositiveIDs parses a submission file: CSV with exactly one column and no
// header, one predicted-positive id per row. The result is normalized:
// deduplicated and sorted ascending. Any format violation is
// ErrMalformedInput; nothing about id validity is checked here.
func PositiveIDs(raw []byte) ([]int64, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrMalformedInput)
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.FieldsPerRecord = 1
	cr.TrimLeadingSpace = true

	seen := make(map[int64]struct{})
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedInput, line, err)
		}
		field := strings.TrimSpace(row[0])
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: non-numeric id %q", ErrMalformedInput, line, field)
		}
		seen[id] = struct{}{}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: no ids", ErrMalformedInput)
	}

	ids := make([]int64, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
