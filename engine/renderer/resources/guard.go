package resources

// FrameGuard tracks which ring slots have work submitted that the CPU has
// not yet waited on.
type FrameGuard struct {
	submitted []bool
}

func newFrameGuard(ringSize int) *FrameGuard {
	return &FrameGuard{submitted: make([]bool, ringSize)}
}

func (g *FrameGuard) mark(slot int, inFlight bool) {
	if slot >= 0 && slot < len(g.submitted) {
		g.submitted[slot] = inFlight
	}
}

func (g *FrameGuard) inFlight(slot int) bool {
	return slot >= 0 && slot < len(g.submitted) && g.submitted[slot]
}
