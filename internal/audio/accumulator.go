package audio

import "time"

// Accumulator collects PCM frames until more than threshold bytes are held.
// It is not safe for concurrent use; the owning session loop is the only
// writer.
type Accumulator struct {
	buf       []byte
	threshold int
}

// ThresholdFor returns the byte count of window worth of audio in format f.
func ThresholdFor(f Format, window time.Duration) int {
	return int(int64(f.BytesPerSecond()) * int64(window) / int64(time.Second))
}

func NewAccumulator(threshold int) *Accumulator {
	if threshold < 0 {
		threshold = 0
	}
	a := &Accumulator{threshold: threshold}
	a.buf = a.newBuffer()
	return a
}

// newBuffer sizes for one window plus a typical overshoot, independent of
// how large the previous window grew.
func (a *Accumulator) newBuffer() []byte {
	return make([]byte, 0, a.threshold+a.threshold/4)
}

func (a *Accumulator) Append(chunk []byte) {
	a.buf = append(a.buf, chunk...)
}

// TakeIfReady hands over the whole buffer once it is larger than the
// threshold. A single oversized chunk yields one oversized window.
func (a *Accumulator) TakeIfReady() ([]byte, bool) {
	if len(a.buf) <= a.threshold {
		return nil, false
	}
	return a.take(), true
}

// Flush hands over whatever is buffered, ignoring the threshold.
func (a *Accumulator) Flush() ([]byte, bool) {
	if len(a.buf) == 0 {
		return nil, false
	}
	return a.take(), true
}

func (a *Accumulator) take() []byte {
	window := a.buf
	a.buf = a.newBuffer()
	return window
}

func (a *Accumulator) Len() int {
	return len(a.buf)
}

func (a *Accumulator) Threshold() int {
	return a.threshold
}
