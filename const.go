package dex

const (
	// EngineVersion is the current version of the exchange engine
	EngineVersion = "v1.0.0"

	// SnapshotSchemaVersion is the current version of the snapshot schema
	// Increment this when the snapshot format changes in a backward-incompatible way
	SnapshotSchemaVersion = 1
)

const (
	// QueueCapacity is the number of resting-order slots in each directional queue.
	QueueCapacity = 32

	// UserOrderCapacity is the number of live orders a single account can track.
	UserOrderCapacity = 32

	// EventQueueCapacity is the number of pending settlement events per account.
	EventQueueCapacity = 32

	// MintRegistryCapacity is the number of mints a single account can hold ledgers for.
	MintRegistryCapacity = 32
)
