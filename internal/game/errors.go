package game

import "errors"

var (
	// Lobby
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomExists     = errors.New("a room with that name already exists")
	ErrRoomFull       = errors.New("room is full")
	ErrWrongPassword  = errors.New("wrong room password")
	ErrAlreadyInRoom  = errors.New("already in a room")
	ErrNotInRoom      = errors.New("not a member of this room")
	ErrNotHost        = errors.New("only the host can do that")
	ErrTooFewPlayers  = errors.New("not enough players to start")
	ErrGameInProgress = errors.New("a game is already in progress")
	ErrGameNotStarted = errors.New("the game has not started")

	// Authorization
	ErrNotYourTurn   = errors.New("it is not your turn")
	ErrNotAuthorized = errors.New("you cannot respond to this action")

	// Resources
	ErrInsufficientCoins = errors.New("not enough coins")
	ErrInvalidTarget     = errors.New("invalid target")
	ErrMustCoup          = errors.New("with 10 or more coins you must coup")
	ErrInvalidRole       = errors.New("invalid role")

	// Protocol
	ErrUnknownAction    = errors.New("unknown action")
	ErrNotInstant       = errors.New("action needs a response window, declare it instead")
	ErrNoPendingAction  = errors.New("no matching action is pending")
	ErrActionPending    = errors.New("another action is still pending")
	ErrNotBlockable     = errors.New("this action cannot be blocked")
	ErrAlreadyBlocked   = errors.New("the action is already blocked")
	ErrActionBlocked    = errors.New("the action is blocked")
	ErrNotBlocked       = errors.New("the action is not blocked")
	ErrNotChallengeable = errors.New("this action cannot be challenged")
	ErrNotCancellable   = errors.New("this action cannot be cancelled")
	ErrInvalidExchange  = errors.New("invalid exchange selection")
)
