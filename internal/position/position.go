package position

import (
	"sync"

	"github.com/cs3238-tsuzu/movesync-online/internal/movement"
)

// Store keeps the local participant's position and the latest set of remote
// positions. The local position belongs to the render goroutine; the remote
// set is swapped by the network poller and read by the renderer.
type Store struct {
	local movement.Position

	remote     []movement.Position
	remoteLock sync.RWMutex
}

func NewStore(start movement.Position) *Store {
	return &Store{local: start}
}

func (s *Store) Move(d movement.Delta) { s.local = s.local.Add(d) }

func (s *Store) Local() movement.Position { return s.local }

// ReplaceRemote swaps in a copy of ps as the whole remote set.
func (s *Store) ReplaceRemote(ps []movement.Position) {
	next := make([]movement.Position, len(ps))
	copy(next, ps)

	s.remoteLock.Lock()
	s.remote = next
	s.remoteLock.Unlock()
}

func (s *Store) Remote() []movement.Position {
	s.remoteLock.RLock()
	defer s.remoteLock.RUnlock()

	res := make([]movement.Position, len(s.remote))
	copy(res, s.remote)

	return res
}
