package correlator

import (
	"fmt"

	"github.com/potooio/ondeath/internal/types"
)

// Validation checks, in evaluation order.
const (
	CheckStatesVsLeaderboards = "states-vs-leaderboards"
	CheckHitsVsDeads          = "hits-vs-deads"
	CheckPawnsVsStates        = "pawns-vs-states"
	CheckPawnHit              = "pawn-hit"
	CheckPawnDead             = "pawn-dead"
	CheckPawnKills            = "pawn-kills"
)

// ValidationError reports why a cycle's tables were rejected.
type ValidationError struct {
	Check string
	Got   int
	Want  int
	Pawn  types.PawnID
}

func (e *ValidationError) Error() string {
	if e.Pawn != "" || e.Got == e.Want {
		return fmt.Sprintf("snapshot rejected: %s for pawn %q", e.Check, e.Pawn)
	}
	return fmt.Sprintf("snapshot rejected: %s (%d != %d)", e.Check, e.Got, e.Want)
}

// Validate accepts t as a coherent Snapshot only if every cardinality and
// cross-reference check holds. The five queries are not atomic against the
// live server, so any mismatch rejects the whole cycle.
func Validate(t Tables) (types.Snapshot, error) {
	if len(t.States) != len(t.Leaderboards) {
		return types.Snapshot{}, &ValidationError{Check: CheckStatesVsLeaderboards, Got: len(t.States), Want: len(t.Leaderboards)}
	}
	if len(t.Hits) != len(t.Deads) {
		return types.Snapshot{}, &ValidationError{Check: CheckHitsVsDeads, Got: len(t.Hits), Want: len(t.Deads)}
	}
	if len(t.Pawns) != len(t.States) {
		return types.Snapshot{}, &ValidationError{Check: CheckPawnsVsStates, Got: len(t.Pawns), Want: len(t.States)}
	}

	hit := make(map[types.PawnID]bool, len(t.Hits))
	for _, h := range t.Hits {
		hit[h.Pawn] = true
	}
	dead := make(map[types.PawnID]bool, len(t.Deads))
	for _, d := range t.Deads {
		dead[d.Pawn] = true
	}
	killed := make(map[types.ControllerID]bool, len(t.Kills))
	for _, k := range t.Kills {
		if k.Controller != "" {
			killed[k.Controller] = true
		}
	}

	for _, p := range t.Pawns {
		// A None pawn never has hit or dead rows, so it rejects the batch.
		if p.Pawn == "" || !hit[p.Pawn] {
			return types.Snapshot{}, &ValidationError{Check: CheckPawnHit, Pawn: p.Pawn}
		}
		if !dead[p.Pawn] {
			return types.Snapshot{}, &ValidationError{Check: CheckPawnDead, Pawn: p.Pawn}
		}
		if !killed[p.Controller] {
			return types.Snapshot{}, &ValidationError{Check: CheckPawnKills, Pawn: p.Pawn}
		}
	}

	return types.Snapshot{
		Pawns: t.Pawns,
		Deads: t.Deads,
		Hits:  t.Hits,
		Kills: t.Kills,
	}, nil
}
