package types

// PawnID names an in-world figure actor, e.g. "BP_FigureV2_C_2147482311".
type PawnID string

// ControllerID names a player controller, e.g. "BP_PlayerController_C_2147482390".
type ControllerID string

// PlayerStateID names a player state object, e.g. "BP_PlayerState_C_2147482381".
type PlayerStateID string

// Player is the identity of a connected player as resolved from its controller.
type Player struct {
	Name       string        `json:"name"`
	ID         string        `json:"id"`
	Controller ControllerID  `json:"controller"`
	State      PlayerStateID `json:"state"`
}

// IsZero reports whether p carries no identity at all.
func (p Player) IsZero() bool {
	return p == Player{}
}

// Object classes queried on the server.
const (
	ClassPlayerController = "BP_PlayerController_C"
	ClassPlayerState      = "BP_PlayerState_C"
	ClassFigure           = "BP_FigureV2_C"
)
