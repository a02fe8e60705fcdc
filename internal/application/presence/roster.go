package presence

import (
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hilthontt/lounge/internal/domain"
)

// Roster is the last user list received from the server. It is replaced
// wholesale on every update and never patched.
type Roster struct {
	peers []domain.Peer
	byID  map[string]domain.Peer
	ids   mapset.Set[string]
}

func NewRoster() *Roster {
	return &Roster{
		byID: make(map[string]domain.Peer),
		ids:  mapset.NewThreadUnsafeSet[string](),
	}
}

// Replace swaps in a new user list and returns the ids that were present
// before and are gone now.
func (r *Roster) Replace(peers []domain.Peer) []string {
	next := mapset.NewThreadUnsafeSet[string]()
	byID := make(map[string]domain.Peer, len(peers))
	list := make([]domain.Peer, 0, len(peers))
	for _, p := range peers {
		if p.ID == "" || next.Contains(p.ID) {
			continue
		}
		next.Add(p.ID)
		byID[p.ID] = p
		list = append(list, p)
	}

	departed := r.ids.Difference(next).ToSlice()

	r.peers = list
	r.byID = byID
	r.ids = next
	return departed
}

func (r *Roster) Get(id string) (domain.Peer, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *Roster) Contains(id string) bool {
	return r.ids.Contains(id)
}

func (r *Roster) Len() int {
	return len(r.peers)
}

// Visible is the user list as shown to the local user: everyone but self, in
// server order.
func (r *Roster) Visible(selfID string) []domain.Peer {
	out := make([]domain.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		if p.ID != selfID {
			out = append(out, p)
		}
	}
	return out
}

// ChatCandidates lists the peers a new private chat can be started with. Peers
// that already share an established private room are excluded. The result is
// computed on every call so it always reflects the current roster.
func (r *Roster) ChatCandidates(selfID string, established mapset.Set[string]) []domain.Peer {
	out := make([]domain.Peer, 0, len(r.peers))
	for _, p := range r.Visible(selfID) {
		if established != nil && established.Contains(p.ID) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (r *Roster) Reset() {
	r.peers = nil
	r.byID = make(map[string]domain.Peer)
	r.ids = mapset.NewThreadUnsafeSet[string]()
}
