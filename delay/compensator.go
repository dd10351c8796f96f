package delay

// Compensator delays each input port so that all of them line up with the
// port reporting the largest upstream latency.
type Compensator struct {
	lines   []*Line
	latency []int
}

// NewCompensator returns a compensator for ports input channels.
func NewCompensator(ports, maxDelay, maxBlock int) *Compensator {
	c := &Compensator{
		lines:   make([]*Line, ports),
		latency: make([]int, ports),
	}
	for i := range c.lines {
		c.lines[i] = NewLine(maxDelay, maxBlock)
	}
	return c
}

// Ports returns the number of compensated ports.
func (c *Compensator) Ports() int { return len(c.lines) }

// Line returns the delay line of port i.
func (c *Compensator) Line(i int) *Line { return c.lines[i] }

// Latency returns the last latency reported for port i.
func (c *Compensator) Latency(i int) int { return c.latency[i] }

// SetLatency records the upstream latency of a port, in samples, and
// retargets every line. On error, nothing changes.
func (c *Compensator) SetLatency(port, samples int) error {
	if port < 0 || port >= len(c.lines) {
		return nil
	}
	old := c.latency[port]
	c.latency[port] = samples
	if err := c.retarget(); err != nil {
		c.latency[port] = old
		c.retarget()
		return err
	}
	return nil
}

func (c *Compensator) retarget() error {
	slowest := 0
	for _, l := range c.latency {
		slowest = max(slowest, l)
	}
	for i, l := range c.latency {
		if slowest-l > c.lines[i].MaxDelay() || l < 0 {
			return ErrDelayTooLong
		}
	}
	for i, l := range c.latency {
		c.lines[i].SetTargetDelay(slowest - l)
	}
	return nil
}

// Process runs port i's input through its line.
func (c *Compensator) Process(port int, in, out []float32) {
	c.lines[port].Process(in, out)
}
