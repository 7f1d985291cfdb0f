package catalog

import "gitlab.com/gomidi/midi/v2"

// MIDIEvent is one timestamped MIDI message within a block. SamplePosition
// is the offset, in samples from the start of the block, at which the event
// fires.
type MIDIEvent struct {
	SamplePosition int
	Message        midi.Message
}

// MIDIBuffer is the block's MIDI stream. It is shared end-to-end across the
// chain: each plugin in turn may read, add to, or remove from it.
type MIDIBuffer struct {
	Events []MIDIEvent
}

// Clear empties the buffer for reuse between blocks.
func (b *MIDIBuffer) Clear() {
	b.Events = b.Events[:0]
}

// Add appends an event, keeping the buffer ordered by sample position.
func (b *MIDIBuffer) Add(e MIDIEvent) {
	i := len(b.Events)
	for i > 0 && b.Events[i-1].SamplePosition > e.SamplePosition {
		i--
	}
	b.Events = append(b.Events, MIDIEvent{})
	copy(b.Events[i+1:], b.Events[i:])
	b.Events[i] = e
}
