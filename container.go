package conduit

// Container is a handle on a container entity.
type Container struct {
	id EntityID
	m  *Manager
}

// ID returns the container's entity id.
func (c *Container) ID() EntityID {
	return c.id
}

// Bounds returns the container's stored bounds.
func (c *Container) Bounds() (OBB, bool) {
	return c.m.view.bounds(c.id)
}

// Conduits returns the conduits linked to the container.
func (c *Container) Conduits() []EntityID {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	return c.m.view.linkedConduits(c.id).IDs()
}
