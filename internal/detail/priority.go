package detail

import (
	"fmt"
	"strings"
)

// Priority is a coarse scheduling class. Higher values run first.
type Priority uint32

const (
	PriorityLow Priority = iota + 1
	PriorityNormal
	PriorityHigh
	PriorityNow
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityNow:
		return "now"
	default:
		return fmt.Sprintf("priority(%d)", uint32(p))
	}
}

// ParsePriority parses a priority name as produced by String.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "now":
		return PriorityNow, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// Packet type codes that may lead a record.
const (
	CodeAccessRequest     byte = 1
	CodeAccountingRequest byte = 4
	CodeStatusServer      byte = 12
	CodeDisconnectRequest byte = 40
	CodeCoARequest        byte = 43
)

// DefaultPriorities returns the built-in code to priority table.
func DefaultPriorities() map[byte]Priority {
	return map[byte]Priority{
		CodeAccessRequest:     PriorityHigh,
		CodeAccountingRequest: PriorityLow,
		CodeCoARequest:        PriorityNormal,
		CodeDisconnectRequest: PriorityNormal,
		CodeStatusServer:      PriorityNow,
	}
}

// Classifier maps a record's leading type byte to a Priority.
type Classifier struct {
	table [256]Priority
}

// NewClassifier builds a classifier from table. Codes absent from table map to PriorityLow.
func NewClassifier(table map[byte]Priority) Classifier {
	var c Classifier
	for i := range c.table {
		c.table[i] = PriorityLow
	}
	for code, p := range table {
		c.table[code] = p
	}
	return c
}

// Classify returns the priority of rec.
func (c Classifier) Classify(rec []byte) Priority {
	if len(rec) == 0 {
		return PriorityLow
	}
	return c.table[rec[0]]
}
