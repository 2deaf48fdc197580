package roster

import (
	"sort"
	"sync"

	"github.com/potooio/ondeath/internal/types"
)

// Static is a Resolver over a fixed, mutable set of players.
type Static struct {
	mu      sync.RWMutex
	players map[types.ControllerID]types.Player
}

// NewStatic returns a resolver knowing players, keyed by their Controller.
func NewStatic(players ...types.Player) *Static {
	s := &Static{players: make(map[types.ControllerID]types.Player)}
	for _, p := range players {
		s.players[p.Controller] = p
	}
	return s
}

// Connect adds or replaces a player.
func (s *Static) Connect(p types.Player) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[p.Controller] = p
}

// Disconnect removes the player behind controller.
func (s *Static) Disconnect(controller types.ControllerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.players, controller)
}

// Resolve implements Resolver.
func (s *Static) Resolve(controller types.ControllerID) (types.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.players[controller]
	return p, ok
}

// Connected implements Resolver.
func (s *Static) Connected() []types.Player {
	s.mu.RLock()
	players := make([]types.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, p)
	}
	s.mu.RUnlock()

	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return players
}
