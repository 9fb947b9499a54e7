package conduit

// Conduit is a handle on a conduit entity.
//
// Getters read the entity store. Changing the mode queues the conduit for
// re-registration on the next tick; the other setters only write the field.
type Conduit struct {
	id EntityID
	m  *Manager
}

// ID returns the conduit's entity id.
func (c *Conduit) ID() EntityID {
	return c.id
}

// Manager returns the manager that owns this conduit.
func (c *Conduit) Manager() *Manager {
	return c.m
}

// Mode returns the conduit's role.
func (c *Conduit) Mode() Mode {
	m, _ := c.m.view.mode(c.id)
	return m
}

// SetMode changes the conduit's role and queues an update. Switching to
// ModeConduit drops the container link on that update.
func (c *Conduit) SetMode(m Mode) {
	if cur, ok := c.m.view.mode(c.id); ok && cur == m {
		return
	}
	c.m.view.setMode(c.id, m)
	c.m.processor.QueueConduit(c.id)
}

// NetworkID returns the id of the conduit's network, or "" if it has not been
// registered yet.
func (c *Conduit) NetworkID() string {
	return c.m.view.networkID(c.id)
}

// Connections returns the conduits this one touches.
func (c *Conduit) Connections() []EntityID {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.view.connections(c.id).IDs()
}

// Container returns the linked container, or None.
func (c *Conduit) Container() EntityID {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.view.container(c.id)
}

// Channel returns the conduit's channel.
func (c *Conduit) Channel() int {
	return c.m.view.channel(c.id)
}

// SetChannel sets the conduit's channel.
func (c *Conduit) SetChannel(ch int) {
	c.m.store.SetInt(c.id, FieldChannel, ch)
}

// Priority returns the conduit's priority.
func (c *Conduit) Priority() int {
	return c.m.view.priority(c.id)
}

// SetPriority sets the conduit's priority.
func (c *Conduit) SetPriority(p int) {
	c.m.store.SetInt(c.id, FieldPriority, p)
}

// Filter returns the conduit's item filter.
func (c *Conduit) Filter() Filter {
	return c.m.view.filter(c.id)
}

// SetFilter sets the conduit's item filter.
func (c *Conduit) SetFilter(f Filter) {
	c.m.view.setFilter(c.id, f)
}

// TransferRate returns the conduit's transfer rate, or the configured default
// if none is set.
func (c *Conduit) TransferRate() int {
	return c.m.view.transferRate(c.id)
}

// SetTransferRate sets the conduit's transfer rate, clamped to [1, 100].
func (c *Conduit) SetTransferRate(rate int) {
	c.m.store.SetInt(c.id, FieldTransferRate, min(max(rate, 1), 100))
}

// Bounds returns the conduit's stored bounds.
func (c *Conduit) Bounds() (OBB, bool) {
	return c.m.view.bounds(c.id)
}
