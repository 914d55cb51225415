package diff

import "strings"

// Diff3 merges two descendants of a common base line by line. Runs
// where only one side edited the base apply cleanly; runs where both
// sides edited become conflicts rendered with <<<<<<< / ======= /
// >>>>>>> markers

// chunk is a contiguous piece of merge output
type chunk interface {
	isClean() bool
	render(aName, bName string) string
}

type cleanChunk struct {
	lines []string
}

func (c cleanChunk) isClean() bool { return true }

func (c cleanChunk) render(_, _ string) string {
	return strings.Join(c.lines, "")
}

type conflictChunk struct {
	oLines []string
	aLines []string
	bLines []string
}

func (c conflictChunk) isClean() bool { return false }

func (c conflictChunk) render(aName, bName string) string {
	var out strings.Builder
	writeSeparator(&out, "<", aName)
	for _, line := range c.aLines {
		out.WriteString(line)
	}
	writeSeparator(&out, "=", "")
	for _, line := range c.bLines {
		out.WriteString(line)
	}
	writeSeparator(&out, ">", bName)
	return out.String()
}

func writeSeparator(out *strings.Builder, char, name string) {
	out.WriteString(strings.Repeat(char, 7))
	if name != "" {
		out.WriteString(" " + name)
	}
	out.WriteString("\n")
}

// MergeResult is the outcome of a three-way merge
type MergeResult struct {
	chunks []chunk
}

// IsClean returns whether the merge produced no conflict
func (r *MergeResult) IsClean() bool {
	for _, c := range r.chunks {
		if !c.isClean() {
			return false
		}
	}
	return true
}

// Render returns the merged document, labeling conflict markers with
// the given side names
func (r *MergeResult) Render(aName, bName string) string {
	var out strings.Builder
	for _, c := range r.chunks {
		out.WriteString(c.render(aName, bName))
	}
	return out.String()
}

type diff3 struct {
	o, a, b []string

	chunks []chunk

	lineO, lineA, lineB int

	matchA map[int]int
	matchB map[int]int
}

// Merge3 three-way merges a and b against their common base o
func Merge3(o, a, b string) *MergeResult {
	m := &diff3{
		o: SplitLines(o),
		a: SplitLines(a),
		b: SplitLines(b),
	}
	m.matchA = matchSet(o, a)
	m.matchB = matchSet(o, b)
	m.generateChunks()
	return &MergeResult{chunks: m.chunks}
}

// matchSet maps base line numbers to the side's line numbers for
// every line the side left untouched
func matchSet(o, side string) map[int]int {
	matches := map[int]int{}
	for _, edit := range Diff(o, side) {
		if edit.Type == Eql {
			matches[edit.ALine.Number] = edit.BLine.Number
		}
	}
	return matches
}

func (m *diff3) generateChunks() {
	for {
		i := m.findNextMismatch()

		switch {
		case i == 1:
			o, a, b, found := m.findNextMatch()
			if found {
				m.emitChunk(o, a, b)
				continue
			}
			m.emitFinalChunk()
			return
		case i > 0:
			m.emitChunk(m.lineO+i, m.lineA+i, m.lineB+i)
		default:
			m.emitFinalChunk()
			return
		}
	}
}

// findNextMismatch returns the distance to the first line where the
// three versions stop matching, or 0 when they match to the end
func (m *diff3) findNextMismatch() int {
	i := 1
	for m.inBounds(i) &&
		m.isMatch(m.matchA, m.lineA, i) &&
		m.isMatch(m.matchB, m.lineB, i) {
		i++
	}
	if m.inBounds(i) {
		return i
	}
	return 0
}

func (m *diff3) inBounds(i int) bool {
	return m.lineO+i <= len(m.o) || m.lineA+i <= len(m.a) || m.lineB+i <= len(m.b)
}

func (m *diff3) isMatch(matches map[int]int, offset, i int) bool {
	n, ok := matches[m.lineO+i]
	return ok && n == offset+i
}

// findNextMatch returns the next base line both sides agree on
func (m *diff3) findNextMatch() (o, a, b int, found bool) {
	o = m.lineO + 1
	for o <= len(m.o) {
		a, okA := m.matchA[o]
		b, okB := m.matchB[o]
		if okA && okB {
			return o, a, b, true
		}
		o++
	}
	return 0, 0, 0, false
}

func (m *diff3) emitChunk(o, a, b int) {
	m.writeChunk(
		m.o[m.lineO:o-1],
		m.a[m.lineA:a-1],
		m.b[m.lineB:b-1],
	)
	m.lineO, m.lineA, m.lineB = o-1, a-1, b-1
}

func (m *diff3) emitFinalChunk() {
	m.writeChunk(m.o[m.lineO:], m.a[m.lineA:], m.b[m.lineB:])
}

func (m *diff3) writeChunk(o, a, b []string) {
	if len(o) == 0 && len(a) == 0 && len(b) == 0 {
		return
	}

	switch {
	case linesEqual(a, o) || linesEqual(a, b):
		m.chunks = append(m.chunks, cleanChunk{lines: b})
	case linesEqual(b, o):
		m.chunks = append(m.chunks, cleanChunk{lines: a})
	default:
		m.chunks = append(m.chunks, conflictChunk{oLines: o, aLines: a, bLines: b})
	}
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
