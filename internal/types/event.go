package types

// Event names as delivered to subscribers.
const (
	EventSpawn = "ondeath:spawn"
	EventDeath = "ondeath:death"
	EventKill  = "ondeath:kill"

	EventSubscribe   = "ondeath:subscribe"
	EventUnsubscribe = "ondeath:unsubscribe"
)

// Event is a derived, edge-triggered notification. The set of implementations
// is closed: SpawnEvent, DeathEvent and KillEvent.
type Event interface {
	// Name returns the wire name, e.g. "ondeath:death".
	Name() string
	isEvent()
}

// SpawnEvent is emitted the first time a pawn is seen for a resolvable controller.
type SpawnEvent struct {
	Pawn   PawnID `json:"pawn"`
	Player Player `json:"player"`
}

// Killer identifies who scored the kill behind a death. The embedded player
// fields are flattened into the JSON payload next to "kills".
type Killer struct {
	Player
	Kills int `json:"kills"`
}

// DeathEvent is emitted once per alive -> dead transition of a tracked pawn.
type DeathEvent struct {
	Pawn   PawnID  `json:"pawn"`
	Player Player  `json:"player"`
	Killer *Killer `json:"killer,omitempty"`
}

// KillEvent is emitted whenever a controller's kill count increases.
type KillEvent struct {
	Player   Player `json:"player"`
	Kills    int    `json:"kills"`
	Previous int    `json:"previous"`
}

func (SpawnEvent) Name() string { return EventSpawn }
func (DeathEvent) Name() string { return EventDeath }
func (KillEvent) Name() string  { return EventKill }

func (SpawnEvent) isEvent() {}
func (DeathEvent) isEvent() {}
func (KillEvent) isEvent()  {}
