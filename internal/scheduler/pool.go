package scheduler

import "fmt"

// FramePool holds the frames not leased to any worker.
//
// Membership is a dense bitmap over [0, frameCount); low is a lower bound on
// the smallest member, which makes Take hand out frames minimum-first.
type FramePool struct {
	present []bool
	size    int
	low     int
}

// NewFramePool returns a pool holding every frame in [0, frameCount).
func NewFramePool(frameCount uint64) *FramePool {
	p := &FramePool{present: make([]bool, frameCount)}
	for i := range p.present {
		p.present[i] = true
	}
	p.size = len(p.present)
	return p
}

// Take removes and returns up to n frames, smallest first.
func (p *FramePool) Take(n int) []FrameID {
	if n <= 0 || p.size == 0 {
		return nil
	}
	if n > p.size {
		n = p.size
	}

	out := make([]FrameID, 0, n)
	for i := p.low; i < len(p.present) && len(out) < n; i++ {
		if p.present[i] {
			p.present[i] = false
			out = append(out, FrameID(i))
		}
	}
	p.size -= len(out)
	if len(out) > 0 {
		p.low = int(out[len(out)-1]) + 1
	}
	return out
}

// ReturnMany puts frames back. A frame outside the job or already present
// means two owners existed; that is a bug and panics.
func (p *FramePool) ReturnMany(ids []FrameID) {
	for _, id := range ids {
		if id >= FrameID(len(p.present)) {
			panic(fmt.Sprintf("frame pool: frame %d outside job of %d frames", id, len(p.present)))
		}
		if p.present[id] {
			panic(fmt.Sprintf("frame pool: frame %d returned while already pooled", id))
		}
		p.present[id] = true
		p.size++
		if int(id) < p.low {
			p.low = int(id)
		}
	}
}

// Remove takes a specific frame out of the pool and reports whether it was there.
func (p *FramePool) Remove(id FrameID) bool {
	if !p.Contains(id) {
		return false
	}
	p.present[id] = false
	p.size--
	return true
}

func (p *FramePool) Contains(id FrameID) bool {
	return id < FrameID(len(p.present)) && p.present[id]
}

func (p *FramePool) IsEmpty() bool {
	return p.size == 0
}

func (p *FramePool) Len() int {
	return p.size
}
