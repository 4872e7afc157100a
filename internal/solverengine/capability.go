package solverengine

import "sync/atomic"

// Capability is the process-wide solver license flag (§9 "process-wide
// solver license"). It is initialized once at startup and read by every
// run to pick between the remote engine and the greedy fallback.
type Capability struct {
	remote  Engine
	greedy  Engine
	healthy atomic.Bool
}

// NewCapability wires a remote engine and the always-available greedy
// fallback. healthy starts false until Probe (or SetHealthy) confirms the
// remote engine is reachable.
func NewCapability(remote Engine) *Capability {
	return &Capability{remote: remote, greedy: NewGreedyEngine()}
}

// SetHealthy records whether the remote engine is currently usable.
// Intended to be called by a periodic health-check loop at startup and on
// an interval thereafter.
func (c *Capability) SetHealthy(ok bool) {
	c.healthy.Store(ok)
}

// Healthy reports the remote engine's last known reachability.
func (c *Capability) Healthy() bool {
	return c.healthy.Load()
}

// Select returns the remote engine when healthy, otherwise the greedy
// fallback. Every controller calls this once per run rather than caching
// an engine reference, so a mid-run health flip never lands mid-solve.
func (c *Capability) Select() Engine {
	if c.remote != nil && c.healthy.Load() {
		return c.remote
	}
	return c.greedy
}

// Greedy always returns the fallback engine, used when a caller explicitly
// forces the deterministic local path (tests, --no-remote flags).
func (c *Capability) Greedy() Engine {
	return c.greedy
}
