package cleanup

// Cleanup runs release functions in reverse order of registration. It is used
// to undo a partially completed operation.
type Cleanup struct {
	fns []func()
}

func (c *Cleanup) Add(fn func()) {
	c.fns = append(c.fns, fn)
}

// Cleanup runs every registered function, last first. Each function runs at
// most once.
func (c *Cleanup) Cleanup() {
	fns := c.fns
	c.fns = nil
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

// Cancel forgets the registered functions without running them.
func (c *Cleanup) Cancel() {
	c.fns = nil
}
