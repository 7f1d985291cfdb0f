package engine

// delayLineF32 and delayLineF64 are fixed-length, per-channel FIFOs used by
// processBlockBypassed to keep bypass sample-accurate: pushing one sample in
// pops exactly one sample out, so a plugin's declared latency is reproduced
// even while it is bypassed.
type delayLineF32 struct {
	samples []float32
}

// PushPop pushes v onto the tail and pops the head, returning it. A
// zero-length line (zero declared latency) is an instant passthrough.
func (d *delayLineF32) PushPop(v float32) float32 {
	n := len(d.samples)
	if n == 0 {
		return v
	}
	out := d.samples[0]
	copy(d.samples, d.samples[1:])
	d.samples[n-1] = v
	return out
}

// Resize grows (zero-padding the head) or shrinks (truncating from the head)
// the line to exactly newLen samples.
func (d *delayLineF32) Resize(newLen int) {
	old := d.samples
	if newLen <= len(old) {
		d.samples = append([]float32(nil), old[len(old)-newLen:]...)
		return
	}
	grown := make([]float32, newLen)
	copy(grown[newLen-len(old):], old)
	d.samples = grown
}

func (d *delayLineF32) Len() int { return len(d.samples) }

type delayLineF64 struct {
	samples []float64
}

func (d *delayLineF64) PushPop(v float64) float64 {
	n := len(d.samples)
	if n == 0 {
		return v
	}
	out := d.samples[0]
	copy(d.samples, d.samples[1:])
	d.samples[n-1] = v
	return out
}

func (d *delayLineF64) Resize(newLen int) {
	old := d.samples
	if newLen <= len(old) {
		d.samples = append([]float64(nil), old[len(old)-newLen:]...)
		return
	}
	grown := make([]float64, newLen)
	copy(grown[newLen-len(old):], old)
	d.samples = grown
}

func (d *delayLineF64) Len() int { return len(d.samples) }
