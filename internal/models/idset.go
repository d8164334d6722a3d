package models

import (
	"slices"
	"strconv"
	"strings"
)

// IDSet is a sorted set of remote ids. It is stored as a comma-joined string
// and compared as a set, so ordering differences from the API never look like
// a change.
type IDSet []int64

// NewIDSet builds a sorted, de-duplicated set from ids.
func NewIDSet(ids ...int64) IDSet {
	out := slices.Clone(ids)
	slices.Sort(out)
	return IDSet(slices.Compact(out))
}

// ParseIDSet parses the stored comma-joined form. Unparseable entries are
// dropped.
func ParseIDSet(s string) IDSet {
	if s == "" {
		return nil
	}
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return NewIDSet(ids...)
}

// String returns the comma-joined form.
func (s IDSet) String() string {
	parts := make([]string, len(s))
	for i, id := range s {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// Equal reports whether both sets hold the same ids.
func (s IDSet) Equal(other IDSet) bool {
	return slices.Equal(NewIDSet(s...), NewIDSet(other...))
}
