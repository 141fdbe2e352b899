package ucprof

// counterPeriod is the span of the free-running 32-bit cycle counter.
const counterPeriod = uint64(1) << 32

// DefaultClockHz is the cycle counter frequency of the reference target.
const DefaultClockHz = 480_000_000

// Normalizer converts raw cycle counts to seconds relative to the first
// sample. It is a value: Next returns the advanced state and never mutates
// the receiver, so a copy can be threaded through a pipeline explicitly.
//
// Counts must be fed once per packet in packet order. A count lower than the
// previous adjusted count is taken as a counter wrap.
type Normalizer struct {
	clockHz float64
	started bool
	offset  uint64 // adjusted count of the first sample
	last    uint64 // adjusted count of the previous sample
	epoch   uint64 // number of wraps seen so far
}

// NewNormalizer returns a normalizer for a counter ticking at clockHz.
func NewNormalizer(clockHz float64) Normalizer {
	if clockHz <= 0 {
		clockHz = DefaultClockHz
	}
	return Normalizer{clockHz: clockHz}
}

// ClockHz returns the counter frequency.
func (n Normalizer) ClockHz() float64 { return n.clockHz }

// Next normalizes raw and returns the updated normalizer with the timestamp
// in seconds.
func (n Normalizer) Next(raw uint32) (Normalizer, float64) {
	adjusted := uint64(raw) + n.epoch*counterPeriod
	if !n.started {
		n.started = true
		n.offset = adjusted
	}
	if adjusted < n.last {
		n.epoch++
		adjusted += counterPeriod
	}
	n.last = adjusted
	return n, float64(adjusted-n.offset) / n.clockHz
}
