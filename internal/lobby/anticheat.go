package lobby

import "github.com/coder/websocket"

// OnTabEvent reacts to a "switched_tabs" report according to the lobby's
// mode: ignored in normal, counted in tab_tracking, grounds for removal in
// lockdown.
func (l *Lobby) OnTabEvent(c *Conn) {
	l.mu.Lock()

	if l.closed {
		l.mu.Unlock()
		return
	}
	uid := c.User.UserID
	if _, isPlayer := l.scoreboard[uid]; !isPlayer {
		l.mu.Unlock()
		return
	}

	switch l.Mode {
	case ModeTabTracking:
		l.tabSwitches[uid]++
		total := l.tabSwitches[uid]
		l.sendHostLocked(map[string]interface{}{
			"type":     "tab_switch_report",
			"user_id":  uid,
			"username": c.User.Username,
			"total":    total,
		})
		c.Write(map[string]interface{}{
			"type":  "tab_switch_recorded",
			"total": total,
		})
		l.mu.Unlock()

	case ModeLockdown:
		l.log.Infof("lockdown violation by %s, removing", uid)
		c.Write(map[string]interface{}{
			"type":   "kicked",
			"reason": "lockdown_violation",
		})
		l.sendHostLocked(map[string]interface{}{
			"type":     "player_kicked",
			"user_id":  uid,
			"username": c.User.Username,
		})
		l.removePlayerLocked(c, "player_removed")
		c.detach()
		l.mu.Unlock()

		c.kick(websocket.StatusPolicyViolation, "lockdown violation")

	default:
		// normal mode ignores reports
		l.mu.Unlock()
	}
}

// TabSwitches returns the recorded count for a user id; used by the final
// leaderboard and tests.
func (l *Lobby) TabSwitches(userID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tabSwitches[userID]
}
