// Package connectivity supplies the "is connected" signal the sync engine
// consumes. Monitors publish a boolean level and an edge-triggered event
// stream; the engine and driver never probe on their own.
package connectivity

// Monitor exposes connectivity as a level plus edge events.
type Monitor interface {
	// Online reports the current level.
	Online() bool

	// Edges returns a channel that receives one value per false→true
	// transition. It never fires merely because the level is re-observed
	// as true. The channel closes when the monitor shuts down.
	Edges() <-chan struct{}

	// Close stops the monitor and closes the edge channel.
	Close() error
}
