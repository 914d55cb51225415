package diff

import "fmt"

// hunkContext is the number of unchanged lines kept around each run
// of edits
const hunkContext = 3

// Hunk is a run of edits with its surrounding context
type Hunk struct {
	AStart int
	BStart int
	Edits  []Edit
}

// BuildHunks groups an edit script into hunks with ±3 lines of
// context, merging hunks whose contexts overlap
func BuildHunks(edits []Edit) []*Hunk {
	var hunks []*Hunk
	offset := 0

	for {
		for offset < len(edits) && edits[offset].Type == Eql {
			offset++
		}
		if offset >= len(edits) {
			return hunks
		}

		offset -= hunkContext + 1

		hunk := &Hunk{}
		if offset >= 0 {
			if edits[offset].ALine != nil {
				hunk.AStart = edits[offset].ALine.Number
			}
			if edits[offset].BLine != nil {
				hunk.BStart = edits[offset].BLine.Number
			}
		}
		hunks = append(hunks, hunk)
		offset = buildHunk(hunk, edits, offset)
	}
}

// buildHunk consumes edits into the hunk until 3 context lines pass
// with no further edit in sight
func buildHunk(hunk *Hunk, edits []Edit, offset int) int {
	counter := -1

	for counter != 0 {
		if offset >= 0 && counter > 0 {
			hunk.Edits = append(hunk.Edits, edits[offset])
		}

		offset++
		if offset >= len(edits) {
			break
		}

		lookahead := offset + hunkContext
		if lookahead < len(edits) && edits[lookahead].Type != Eql {
			counter = 2*hunkContext + 1
		} else {
			counter--
		}
	}

	return offset
}

// Header returns the @@ line of the hunk
func (h *Hunk) Header() string {
	aLines := make([]*Line, 0, len(h.Edits))
	bLines := make([]*Line, 0, len(h.Edits))
	for _, e := range h.Edits {
		if e.ALine != nil {
			aLines = append(aLines, e.ALine)
		}
		if e.BLine != nil {
			bLines = append(bLines, e.BLine)
		}
	}

	return fmt.Sprintf("@@ %s %s @@", formatRange("-", aLines, h.AStart), formatRange("+", bLines, h.BStart))
}

func formatRange(sign string, lines []*Line, start int) string {
	if len(lines) > 0 {
		start = lines[0].Number
	}
	return fmt.Sprintf("%s%d,%d", sign, start, len(lines))
}
