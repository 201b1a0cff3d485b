package lobby

import (
	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/quizit/quizit-service/internal/models"
)

// Conn is a single user's presence in a lobby. Out is the session's
// serialized outbound queue; everything the lobby emits for this user is
// an enqueue, so a slow socket never stalls the lobby.
type Conn struct {
	User   *models.User
	IsHost bool
	Out    chan map[string]interface{}

	// Kick asks the transport to flush queued frames and then close the
	// socket with the given code, so a kicked notice enqueued just before
	// still reaches the wire.
	Kick func(code websocket.StatusCode, reason string)
	// Detach clears the owning session's lobby pointer when the lobby
	// removes this user on its own initiative (teardown, lockdown kick,
	// empty-lobby drop).
	Detach func()
}

// Write pushes a frame onto the user's queue non-blockingly. Frames for a
// backed-up connection are dropped rather than stalling the caller.
func (c *Conn) Write(msg map[string]interface{}) {
	select {
	case c.Out <- msg:
	default:
		msgType, _ := msg["type"].(string)
		logrus.Warnf("outbound queue for user %s full, dropped frame type %q", c.User.UserID, msgType)
	}
}

// WriteError is a convenience to send an error frame.
func (c *Conn) WriteError(msg string) {
	c.Write(map[string]interface{}{
		"type":    "error",
		"message": msg,
	})
}

func (c *Conn) detach() {
	if c.Detach != nil {
		c.Detach()
	}
}

func (c *Conn) kick(code websocket.StatusCode, reason string) {
	if c.Kick != nil {
		c.Kick(code, reason)
	}
}
