package workers

// Worker defines the interface for all background workers
type Worker interface {
	// Start schedules the worker and returns without blocking
	Start() error

	// Stop gracefully stops the worker and waits for in-flight work
	Stop()

	// Name returns the worker name for logging
	Name() string
}
