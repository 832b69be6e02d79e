package instance

import (
	"fmt"
	"os"
)

// GetID identifies this worker process in lock owners and logs.
// HMSBILLING_WORKER_ID wins, then the hostname, then a fixed default.
func GetID() string {
	if id := os.Getenv("HMSBILLING_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return fmt.Sprintf("%s-%d", host, os.Getpid())
	}
	return "worker-0"
}
