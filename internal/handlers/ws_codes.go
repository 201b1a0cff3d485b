package handlers

// Close reasons used with websocket.StatusPolicyViolation (1008) and
// websocket.StatusGoingAway (1001).
const (
	reasonInvalidCredentials = "invalid credentials"
	reasonShutdown           = "server shutting down"
)
