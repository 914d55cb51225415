// Package diff computes line-level edit scripts, assembles them into
// hunks, and merges three versions of a file with diff3
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// EditType classifies one line of an edit script
type EditType int8

const (
	// Eql is a line present on both sides
	Eql EditType = iota
	// Ins is a line only present on the right side
	Ins
	// Del is a line only present on the left side
	Del
)

func (t EditType) String() string {
	switch t {
	case Ins:
		return "+"
	case Del:
		return "-"
	default:
		return " "
	}
}

// Line is a numbered line of one document. Numbers are 1-based; the
// text keeps its trailing newline
type Line struct {
	Number int
	Text   string
}

// Edit is one step of an edit script. ALine is set for Eql and Del,
// BLine for Eql and Ins
type Edit struct {
	Type  EditType
	ALine *Line
	BLine *Line
}

func (e Edit) String() string {
	line := e.ALine
	if line == nil {
		line = e.BLine
	}
	return e.Type.String() + strings.TrimSuffix(line.Text, "\n")
}

// SplitLines cuts a document into lines, keeping the newline on each
// line. A trailing newline does not produce an empty last line
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Diff returns the line-level edit script turning a into b. The
// diffing itself runs line-by-line through diffmatchpatch; this
// wrapper rebuilds the per-line numbering the callers need
func Diff(a, b string) []Edit {
	dmp := diffmatchpatch.New()
	ca, cb, lineArray := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lineArray)

	var edits []Edit
	aNum, bNum := 0, 0

	for _, d := range diffs {
		for _, text := range SplitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				aNum++
				bNum++
				edits = append(edits, Edit{
					Type:  Eql,
					ALine: &Line{Number: aNum, Text: text},
					BLine: &Line{Number: bNum, Text: text},
				})
			case diffmatchpatch.DiffDelete:
				aNum++
				edits = append(edits, Edit{
					Type:  Del,
					ALine: &Line{Number: aNum, Text: text},
				})
			case diffmatchpatch.DiffInsert:
				bNum++
				edits = append(edits, Edit{
					Type:  Ins,
					BLine: &Line{Number: bNum, Text: text},
				})
			}
		}
	}

	return edits
}
