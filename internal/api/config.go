package api

// Config holds server configuration.
type Config struct {
	Port              int
	Version           string
	RateLimitRequests int        // Requests per minute (0 = disabled)
	RateLimitBurst    int        // Burst size (0 = 10)
	Auth              AuthConfig // Authentication configuration
	AllowedOrigins    []string   // CORS and websocket origins (empty = allow all)
	WebSocket         WebSocketConfig
}

// WebSocketConfig limits websocket clients.
type WebSocketConfig struct {
	// MaxMessageRate is the maximum number of inbound messages per second
	// per client.
	MaxMessageRate int
	// MaxMessageSize is the maximum inbound message size in bytes.
	MaxMessageSize int64
	// RequireAuth applies the API key check to websocket upgrades.
	RequireAuth bool
}

// DefaultWebSocketConfig returns the default websocket limits.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		MaxMessageRate: 10,
		MaxMessageSize: 4096,
	}
}
