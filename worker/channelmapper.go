package worker

import "github.com/shaban/audiohost/catalog"

// ChannelMapper packs a client's active-channel subset into the chain's
// working buffer and reverses the mapping afterward, per spec §4.3.1. Sites
// may supply a custom mapper (e.g. one that applies panning while
// repacking) without changing SessionWorker itself.
type ChannelMapper interface {
	Pack(dst, src [][]float32, active catalog.ActiveChannelMask)
	Unpack(dst, src [][]float32, active catalog.ActiveChannelMask)
	PackDouble(dst, src [][]float64, active catalog.ActiveChannelMask)
	UnpackDouble(dst, src [][]float64, active catalog.ActiveChannelMask)
}

// DefaultChannelMapper copies active input channels into working-buffer
// slots in order, and mirrors active output channels back in order.
type DefaultChannelMapper struct{}

func (DefaultChannelMapper) Pack(dst, src [][]float32, active catalog.ActiveChannelMask) {
	slot := 0
	for i, on := range active.Input {
		if !on || i >= len(src) || slot >= len(dst) {
			continue
		}
		copy(dst[slot], src[i])
		slot++
	}
	for ; slot < len(dst); slot++ {
		for s := range dst[slot] {
			dst[slot][s] = 0
		}
	}
}

func (DefaultChannelMapper) Unpack(dst, src [][]float32, active catalog.ActiveChannelMask) {
	slot := 0
	for i, on := range active.Output {
		if !on || i >= len(dst) {
			continue
		}
		if slot >= len(src) {
			for s := range dst[i] {
				dst[i][s] = 0
			}
			continue
		}
		copy(dst[i], src[slot])
		slot++
	}
}

func (DefaultChannelMapper) PackDouble(dst, src [][]float64, active catalog.ActiveChannelMask) {
	slot := 0
	for i, on := range active.Input {
		if !on || i >= len(src) || slot >= len(dst) {
			continue
		}
		copy(dst[slot], src[i])
		slot++
	}
	for ; slot < len(dst); slot++ {
		for s := range dst[slot] {
			dst[slot][s] = 0
		}
	}
}

func (DefaultChannelMapper) UnpackDouble(dst, src [][]float64, active catalog.ActiveChannelMask) {
	slot := 0
	for i, on := range active.Output {
		if !on || i >= len(dst) {
			continue
		}
		if slot >= len(src) {
			for s := range dst[i] {
				dst[i][s] = 0
			}
			continue
		}
		copy(dst[i], src[slot])
		slot++
	}
}
