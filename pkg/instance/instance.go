package instance

import (
	"os"

	"github.com/alo17/ilan-backend/pkg/env"
)

// GetID identifies this process in lock values and logs. ALO17_INSTANCE_ID wins, then
// the platform DYNO name, then the hostname.
func GetID() string {
	if id := env.First("ALO17_INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
