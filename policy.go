package framesock

// failurePolicy counts decode failures and decides when a connection has
// used up its budget. Transport failures never touch it.
type failurePolicy struct {
	maxFailures    int
	maxConsecutive int

	failures    int
	consecutive int
}

func newFailurePolicy(maxFailures, maxConsecutive int) failurePolicy {
	return failurePolicy{maxFailures: maxFailures, maxConsecutive: maxConsecutive}
}

// success records a good frame.
func (p *failurePolicy) success() {
	p.consecutive = 0
}

// failure records a malformed frame and reports whether either budget is exhausted.
func (p *failurePolicy) failure() bool {
	p.failures++
	p.consecutive++
	return p.exhausted()
}

func (p *failurePolicy) exhausted() bool {
	return p.consecutive >= p.maxConsecutive || p.failures >= p.maxFailures
}
