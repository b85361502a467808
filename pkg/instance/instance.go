package instance

import (
	"os"

	"github.com/angelmondragon/ordersync-backend/pkg/env"
)

// ID names this process in logs and lock owner values. ORDERSYNC_INSTANCE_ID wins, then
// the platform's DYNO, then the hostname.
func ID() string {
	if id, ok := env.Lookup("INSTANCE_ID"); ok {
		return id
	}
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
