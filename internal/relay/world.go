package relay

import (
	"sort"
	"sync"

	"github.com/cs3238-tsuzu/movesync-online/internal/message"
	"github.com/cs3238-tsuzu/movesync-online/internal/movement"
)

type Participant struct {
	ID       string
	Position movement.Position
}

// World holds the position of every connected participant.
type World struct {
	lock      sync.Mutex
	positions map[string]movement.Position
}

func NewWorld() *World {
	return &World{
		positions: make(map[string]movement.Position),
	}
}

// Join places id at the origin.
func (w *World) Join(id string) {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.positions[id] = movement.Position{}
}

func (w *World) Leave(id string) {
	w.lock.Lock()
	defer w.lock.Unlock()

	delete(w.positions, id)
}

func (w *World) Len() int {
	w.lock.Lock()
	defer w.lock.Unlock()

	return len(w.positions)
}

// Apply moves id by every valid code in codes, in order, and returns how
// many bytes were skipped for not being movement codes. Unknown ids are
// ignored.
func (w *World) Apply(id string, codes []byte) (skipped int) {
	w.lock.Lock()
	defer w.lock.Unlock()

	p, ok := w.positions[id]
	if !ok {
		return 0
	}

	for _, c := range codes {
		intent, ok := movement.Decode(c)
		if !ok {
			skipped++
			continue
		}
		_, d := movement.Encode(intent)
		p = p.Add(d)
	}
	w.positions[id] = p

	return skipped
}

func (w *World) Position(id string) (movement.Position, bool) {
	w.lock.Lock()
	defer w.lock.Unlock()

	p, ok := w.positions[id]
	return p, ok
}

// Snapshot returns every participant sorted by id.
func (w *World) Snapshot() []Participant {
	w.lock.Lock()
	res := make([]Participant, 0, len(w.positions))
	for id, p := range w.positions {
		res = append(res, Participant{ID: id, Position: p})
	}
	w.lock.Unlock()

	sort.Slice(res, func(i, j int) bool {
		return res[i].ID < res[j].ID
	})

	return res
}

// recordsFor encodes the positions of everyone in snap except self.
func recordsFor(snap []Participant, self string) []byte {
	buf := make([]byte, 0, len(snap)*message.RecordSize)
	for i := range snap {
		if snap[i].ID == self {
			continue
		}
		buf = message.AppendRecord(buf, snap[i].Position)
	}

	return buf
}
