// Package conduit maintains a connectivity graph over conduit entities placed
// in a 3D world.
//
// Conduits are boxes that connect when they touch. Connected conduits form a
// network; a conduit in extract or insert mode also links to the container it
// overlaps. The package provides:
//   - Oriented bounding boxes and a separating axis collision test
//   - A spatial query for touching conduits and overlapping containers
//   - A registry that merges and splits networks incrementally
//   - A processor that batches lifecycle events into one pass per tick
//   - An in-memory store with zstd snapshots and SQLite persistence
//
// # Quick Start
//
//	store := conduit.NewMemStore(8)
//	mngr := conduit.NewBuilder().
//	    Store(store).
//	    Options(conduit.WithTolerance(0.02)).
//	    Init()
//	defer mngr.Shutdown()
//
//	store.Spawn(id, "ic_wood_beam", pos, rot)
//	mngr.ConduitPlaced(id, conduit.OBBFromLocal(center, half, pos, rot))
//
// Lifecycle methods (ConduitPlaced, ConduitDestroyed, ContainerPlaced, ...)
// only queue work. The queue is drained once per tick by the Manager's
// scheduler, or by calling Manager.Tick from the host's own loop.
//
// # Removal
//
// Removing an entity needs its adjacency, so capture it first:
//
//	mngr.ConduitDestroyed(id) // captures and queues
//	store.Destroy(id)
//
// # Stored Fields
//
//	ic_mode               Mode (0 conduit, 1 extract, 2 insert)
//	ic_network_id         network id
//	ic_connection_list    neighbour id set
//	ic_container          linked container
//	ic_bound              OBB text record
//	ic_is_new             pending placement flag
//	ic_connected_conduits linked conduits (containers)
package conduit

// Version is the conduit package version.
const Version = "1.0.0"
