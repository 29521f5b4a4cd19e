// Package journal records what a drain did to a detail working file: one
// entry per acknowledged record and a consumed-size checkpoint per file.
// The working file itself stays the source of truth for completion; the
// journal is history for operators.
package journal
