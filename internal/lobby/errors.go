package lobby

import "errors"

var (
	errJoinClosed    = errors.New("game is not accepting players")
	errAlreadyJoined = errors.New("user is already in this game")
)

// ErrJoinClosed reports that a join failed because the lobby is finished
// or torn down.
func ErrJoinClosed(err error) bool { return errors.Is(err, errJoinClosed) }

// ErrAlreadyJoined reports that the user id is already bound to a player
// in the lobby.
func ErrAlreadyJoined(err error) bool { return errors.Is(err, errAlreadyJoined) }
