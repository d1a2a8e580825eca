package history

// depthGuard tracks how deeply the caller is nested inside a guarded region.
//
//	defer g.enter()()
type depthGuard struct {
	depth int
}

// active returns true while at least one region is open.
func (g *depthGuard) active() bool {
	return g.depth > 0
}

// enter opens a region and returns the function that closes it.
// The returned function only has effect the first time it is called.
func (g *depthGuard) enter() func() {
	g.depth++
	released := false
	return func() {
		if !released {
			released = true
			g.depth--
		}
	}
}
