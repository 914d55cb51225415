package packfile

// window is the sliding set of recently visited objects the
// compressor tries delta bases from
type window struct {
	objects []*Unpacked
	offset  int
}

// Unpacked is an entry with its inflated data, cached in the window
type Unpacked struct {
	Entry *Entry
	Data  []byte

	// deltaIndex is built lazily the first time the object is tried
	// as a delta base
	deltaIndex *XDelta
}

func newWindow(size int) *window {
	return &window{objects: make([]*Unpacked, size)}
}

// add registers the entry as the window's newest object, evicting the
// oldest
func (w *window) add(entry *Entry, data []byte) *Unpacked {
	u := &Unpacked{Entry: entry, Data: data}
	w.objects[w.offset] = u
	w.offset = (w.offset + 1) % len(w.objects)
	return u
}

// each yields the window's objects from most to least recently added,
// excluding the newest (the current target)
func (w *window) each(fn func(*Unpacked)) {
	size := len(w.objects)
	limit := (w.offset - 1 + size) % size
	cursor := (w.offset - 2 + size) % size

	for i := 0; i < size-1; i++ {
		if cursor == limit {
			break
		}
		if u := w.objects[cursor]; u != nil {
			fn(u)
		}
		cursor = (cursor - 1 + size) % size
	}
}
