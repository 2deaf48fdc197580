package types

// PawnRow is one line of "GetAll BP_PlayerController_C Pawn".
// Pawn is empty when the controller currently possesses nothing.
type PawnRow struct {
	Index      int
	Controller ControllerID
	Pawn       PawnID
}

// DeadRow is one line of "GetAll BP_FigureV2_C bIsDead".
type DeadRow struct {
	Index int
	Pawn  PawnID
	Dead  bool
}

// HitRow is one line of "GetAll BP_FigureV2_C LastHitBy".
// Hitter is empty when nothing has hit the pawn.
type HitRow struct {
	Index  int
	Pawn   PawnID
	Hitter ControllerID
}

// StateRow is one line of "GetAll BP_PlayerController_C PlayerState".
type StateRow struct {
	Index      int
	Controller ControllerID
	State      PlayerStateID
}

// LeaderboardRow is one "LeaderboardData =" header with its stored columns.
type LeaderboardRow struct {
	Index   int
	State   PlayerStateID
	Columns []int
}

// KillRow joins a leaderboard row to the controller owning its player state.
// Controller is empty when no state row names the same player state.
type KillRow struct {
	Controller ControllerID
	State      PlayerStateID
	Kills      int
}

// Snapshot is one cycle's validated, correlated view of the server tables.
type Snapshot struct {
	Pawns []PawnRow
	Deads []DeadRow
	Hits  []HitRow
	Kills []KillRow
}
