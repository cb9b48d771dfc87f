// File: api/shutdown.go
// Package api defines unified graceful shutdown contract.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// GracefulShutdown is implemented by components that own OS threads.
type GracefulShutdown interface {
	// Shutdown stops every owned worker and blocks until all of them have exited.
	Shutdown() error
}
