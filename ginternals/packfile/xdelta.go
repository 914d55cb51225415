package packfile

// xdelta computes the Copy/Insert instruction list turning one buffer
// into another. The source is indexed by fixed-size blocks; matches
// found through the index are extended forward byte by byte and
// backward into pending inserted bytes

const xdeltaBlockSize = 16

// XDelta is a reusable compression index over a single source buffer
type XDelta struct {
	source []byte
	index  map[string][]int
}

// NewXDeltaIndex builds the block index of the given source
func NewXDeltaIndex(source []byte) *XDelta {
	index := make(map[string][]int, len(source)/xdeltaBlockSize)

	blocks := len(source) / xdeltaBlockSize
	for i := 0; i < blocks; i++ {
		offset := i * xdeltaBlockSize
		slice := string(source[offset : offset+xdeltaBlockSize])
		index[slice] = append(index[slice], offset)
	}

	return &XDelta{source: source, index: index}
}

type xdeltaRun struct {
	x      *XDelta
	target []byte
	offset int
	insert []byte
	ops    []DeltaOp
}

// Compress returns the instructions turning the source into target
func (x *XDelta) Compress(target []byte) []DeltaOp {
	run := &xdeltaRun{x: x, target: target}

	for run.offset < len(run.target) {
		run.generateOps()
	}
	run.flushInsert(0)

	return run.ops
}

func (r *xdeltaRun) generateOps() {
	mOffset, mSize := r.longestMatch()
	if mSize == 0 {
		r.pushInsert()
		return
	}

	mOffset, mSize = r.expandMatch(mOffset, mSize)

	r.flushInsert(0)
	r.ops = append(r.ops, CopyOp{Offset: uint64(mOffset), Size: uint64(mSize)})
}

func (r *xdeltaRun) longestMatch() (mOffset, mSize int) {
	if r.offset+xdeltaBlockSize > len(r.target) {
		return 0, 0
	}
	slice := string(r.target[r.offset : r.offset+xdeltaBlockSize])
	positions, ok := r.x.index[slice]
	if !ok {
		return 0, 0
	}

	for _, pos := range positions {
		remaining := r.remainingBytes(pos)
		if remaining <= mSize {
			break
		}

		s := r.matchFrom(pos, remaining)
		if mSize >= s-pos {
			continue
		}
		mOffset = pos
		mSize = s - pos
	}

	return mOffset, mSize
}

func (r *xdeltaRun) remainingBytes(pos int) int {
	sourceRemaining := len(r.x.source) - pos
	targetRemaining := len(r.target) - r.offset

	min := sourceRemaining
	if targetRemaining < min {
		min = targetRemaining
	}
	if maxCopySize < min {
		min = maxCopySize
	}
	return min
}

func (r *xdeltaRun) matchFrom(pos, remaining int) int {
	s, t := pos, r.offset
	for remaining > 0 && r.x.source[s] == r.target[t] {
		s++
		t++
		remaining--
	}
	return s
}

func (r *xdeltaRun) expandMatch(mOffset, mSize int) (int, int) {
	for len(r.insert) > 0 && mOffset > 0 && r.x.source[mOffset-1] == r.insert[len(r.insert)-1] {
		if mSize == maxCopySize {
			break
		}
		r.offset--
		mOffset--
		mSize++
		r.insert = r.insert[:len(r.insert)-1]
	}

	r.offset += mSize
	return mOffset, mSize
}

func (r *xdeltaRun) pushInsert() {
	r.insert = append(r.insert, r.target[r.offset])
	r.offset++
	r.flushInsert(maxInsertSize)
}

func (r *xdeltaRun) flushInsert(size int) {
	if size != 0 && len(r.insert) < size {
		return
	}
	if len(r.insert) == 0 {
		return
	}
	data := make([]byte, len(r.insert))
	copy(data, r.insert)
	r.ops = append(r.ops, InsertOp{Data: data})
	r.insert = r.insert[:0]
}
