package websocket

import (
	"sync"
	"time"
)

// RateLimiter bounds how many commands one connection may issue per
// minute, protecting the store's write queue from a runaway client.
type RateLimiter struct {
	mu        sync.Mutex
	perMinute int
	clients   map[string]*clientWindow
}

// clientWindow tracks one connection's command count in the current
// minute window.
type clientWindow struct {
	count       int
	windowStart time.Time
}

// NewRateLimiter creates a limiter allowing perMinute commands per
// connection.
func NewRateLimiter(perMinute int) *RateLimiter {
	return &RateLimiter{
		perMinute: perMinute,
		clients:   make(map[string]*clientWindow),
	}
}

// Allow reports whether the connection may issue another command.
func (rl *RateLimiter) Allow(connID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	window, exists := rl.clients[connID]
	if !exists {
		rl.clients[connID] = &clientWindow{count: 1, windowStart: now}
		return true
	}

	if now.Sub(window.windowStart) >= time.Minute {
		window.count = 1
		window.windowStart = now
		return true
	}

	if window.count >= rl.perMinute {
		return false
	}

	window.count++
	return true
}

// Forget drops a connection's window. Called on disconnect so the map
// does not grow with connection churn.
func (rl *RateLimiter) Forget(connID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.clients, connID)
}
