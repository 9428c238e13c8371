package provider

// FetchEvent is a progress report for one in-flight fetch. Exactly two
// variants exist: FetchProgress (zero or more per fetch, monotonically
// non-decreasing, bounded by Size) and FetchComplete (exactly one per
// successful fetch, sent after the artifact is durably written). No
// event follows FetchComplete.
type FetchEvent interface {
	// Resolution identifies the fetch this event belongs to.
	Resolution() ModResolution
}

// FetchProgress reports bytes transferred so far out of Size. Size is
// zero when the source does not announce a length.
type FetchProgress struct {
	Res      ModResolution
	Progress uint64
	Size     uint64
}

func (p FetchProgress) Resolution() ModResolution { return p.Res }

// FetchComplete is the terminal event of a successful fetch.
type FetchComplete struct {
	Res ModResolution
}

func (c FetchComplete) Resolution() ModResolution { return c.Res }

// Sink is the sending half of a progress channel. The fetch operation is
// the sole producer for a given fetch; the caller owns the receiving
// end. A nil Sink means no progress is desired.
type Sink chan<- FetchEvent

// Emit delivers an event without ever blocking the transfer loop. When
// the sink is nil, full, or abandoned by its consumer the event is
// silently dropped; progress reporting is best-effort and must never
// become a correctness dependency of the download.
func Emit(sink Sink, ev FetchEvent) {
	if sink == nil {
		return
	}
	select {
	case sink <- ev:
	default:
	}
}

// CountingWriter tees a byte stream into progress events. Wire it into
// an io.MultiWriter (or use it as the destination of an io.TeeReader)
// around the transfer and call Done once the artifact is durable.
// Mutable
type CountingWriter struct {
	sink    Sink
	res     ModResolution
	size    uint64
	written uint64
}

// NewCountingWriter reports progress for res against the expected total
// size; pass size 0 when the total is unknown.
func NewCountingWriter(sink Sink, res ModResolution, size uint64) *CountingWriter {
	return &CountingWriter{sink: sink, res: res, size: size}
}

func (w *CountingWriter) Write(p []byte) (int, error) {
	w.written += uint64(len(p))
	if w.size > 0 && w.written > w.size {
		// A lying Content-Length must not break monotonic bounds.
		w.written = w.size
	}
	Emit(w.sink, FetchProgress{Res: w.res, Progress: w.written, Size: w.size})
	return len(p), nil
}

// Done emits the terminal FetchComplete event. Call it only after the
// artifact is fully written and durable.
func (w *CountingWriter) Done() {
	Emit(w.sink, FetchComplete{Res: w.res})
}
