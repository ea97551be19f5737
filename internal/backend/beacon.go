package backend

import (
	"context"
	"net/http"
	"time"
)

// beaconTimeout bounds a beacon so it cannot hold up process exit.
const beaconTimeout = 5 * time.Second

// Beacon posts body to path once, in the background, and drops the result.
// Delivery is unreliable: no retry, no confirmation, and the process may
// exit before the request is written. Callers that need an outcome must use
// the regular methods instead.
func (c *Client) Beacon(path string, body any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
		defer cancel()
		if err := c.doJSON(ctx, http.MethodPost, path, nil, body, nil); err != nil {
			c.logger.Debug("beacon dropped", "path", path, "error", err)
		}
	}()
}

// NavigationCleanupBeacon sends a navigation cleanup through Beacon.
func (c *Client) NavigationCleanupBeacon(req NavigationCleanupRequest) {
	c.Beacon(pathNavigationCleanup, req)
}
