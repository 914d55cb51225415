package packfile

import (
	"sort"
)

const (
	// objects smaller than this are cheaper stored whole
	objectSizeMin = 50
	// objects bigger than this are too expensive to delta
	objectSizeMax = 0x20000000
	// maxDepth bounds the length of a delta chain
	maxDepth = 50
	// windowSize is the number of candidate bases kept around
	windowSize = 8
)

// Delta is a compressed representation of an entry relative to a base
type Delta struct {
	Base *Entry
	Data []byte
}

func newDelta(source, target *Unpacked) *Delta {
	if source.deltaIndex == nil {
		source.deltaIndex = NewXDeltaIndex(source.Data)
	}

	var data []byte
	data = append(data, VarIntLE{}.Write(source.Entry.Size, 7)...)
	data = append(data, VarIntLE{}.Write(target.Entry.Size, 7)...)
	for _, op := range source.deltaIndex.Compress(target.Data) {
		data = append(data, op.Bytes()...)
	}

	return &Delta{Base: source.Entry, Data: data}
}

// Compressor deltifies a set of pack entries against each other using
// a sliding window of candidate bases
type Compressor struct {
	db      Source
	window  *window
	objects []*Entry
}

// NewCompressor returns a compressor loading object data from db
func NewCompressor(db Source) *Compressor {
	return &Compressor{
		db:     db,
		window: newWindow(windowSize),
	}
}

// Add registers an entry as a delta candidate. Entries outside the
// useful size range are skipped
func (c *Compressor) Add(entry *Entry) {
	if entry.Size < objectSizeMin || entry.Size > objectSizeMax {
		return
	}
	c.objects = append(c.objects, entry)
}

// BuildDeltas slides the window over the candidates and assigns the
// best delta found for each
func (c *Compressor) BuildDeltas() error {
	sort.Slice(c.objects, func(i, j int) bool {
		return c.objects[j].Less(c.objects[i])
	})

	for _, entry := range c.objects {
		if err := c.buildDelta(entry); err != nil {
			return err
		}
	}
	return nil
}

func (c *Compressor) buildDelta(entry *Entry) error {
	_, data, err := c.db.LoadRaw(entry.Oid)
	if err != nil {
		return err
	}
	target := c.window.add(entry, data)

	c.window.each(func(source *Unpacked) {
		c.tryDelta(source, target)
	})
	return nil
}

// maxSizeHeuristic bounds how big a delta is worth keeping: half the
// target's size, scaled down as the base's chain gets deeper so long
// chains have to earn their keep
func (c *Compressor) maxSizeHeuristic(source, target *Unpacked) float64 {
	var maxSize float64
	var refDepth int

	if target.Entry.Delta != nil {
		maxSize = float64(len(target.Entry.Delta.Data))
		refDepth = target.Entry.Depth
	} else {
		maxSize = float64(target.Entry.Size)/2 - 20
		refDepth = 1
	}

	return maxSize * float64(maxDepth-source.Entry.Depth) / float64(maxDepth+1-refDepth)
}

func (c *Compressor) compatibleSizes(source, target *Unpacked, maxSize float64) bool {
	sizeDiff := 0
	if target.Entry.Size > source.Entry.Size {
		sizeDiff = int(target.Entry.Size - source.Entry.Size)
	}

	if maxSize == 0 {
		return false
	}
	if float64(sizeDiff) >= maxSize {
		return false
	}
	if target.Entry.Size < source.Entry.Size/32 {
		return false
	}
	return true
}

func (c *Compressor) tryDelta(source, target *Unpacked) {
	if source.Entry.Type != target.Entry.Type {
		return
	}
	if source.Entry.Depth >= maxDepth {
		return
	}

	maxSize := c.maxSizeHeuristic(source, target)
	if !c.compatibleSizes(source, target, maxSize) {
		return
	}

	delta := newDelta(source, target)
	size := target.Entry.PackedSize()

	if float64(len(delta.Data)) > maxSize {
		return
	}
	if uint64(len(delta.Data)) == size && delta.Base.Depth+1 >= target.Entry.Depth {
		return
	}

	target.Entry.AssignDelta(delta)
}
