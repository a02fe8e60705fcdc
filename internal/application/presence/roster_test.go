package presence

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/hilthontt/lounge/internal/domain"
	"github.com/stretchr/testify/assert"
)

func peers(ids ...string) []domain.Peer {
	out := make([]domain.Peer, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.Peer{ID: id, Name: "user-" + id})
	}
	return out
}

func TestRoster_ReplaceReportsDeparted(t *testing.T) {
	r := NewRoster()
	assert.Empty(t, r.Replace(peers("me", "a", "b")))

	departed := r.Replace(peers("me", "b", "c"))
	assert.Equal(t, []string{"a"}, departed)
	assert.False(t, r.Contains("a"))
	assert.True(t, r.Contains("c"))

	p, ok := r.Get("c")
	assert.True(t, ok)
	assert.Equal(t, "user-c", p.Name)
}

func TestRoster_ReplaceDropsDuplicatesAndBlankIDs(t *testing.T) {
	r := NewRoster()
	r.Replace(append(peers("a", "a", "b"), domain.Peer{Name: "ghost"}))
	assert.Equal(t, 2, r.Len())
}

func TestRoster_VisibleExcludesSelf(t *testing.T) {
	r := NewRoster()
	r.Replace(peers("a", "me", "b"))

	visible := r.Visible("me")
	assert.Len(t, visible, 2)
	assert.Equal(t, "a", visible[0].ID)
	assert.Equal(t, "b", visible[1].ID)
}

func TestRoster_ChatCandidatesExcludeEstablished(t *testing.T) {
	r := NewRoster()
	r.Replace(peers("me", "a", "b", "c"))
	established := mapset.NewThreadUnsafeSet("b")

	got := r.ChatCandidates("me", established)
	assert.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	// recomputed on every read
	established.Remove("b")
	assert.Len(t, r.ChatCandidates("me", established), 3)
}

func TestRoster_Reset(t *testing.T) {
	r := NewRoster()
	r.Replace(peers("a"))
	r.Reset()
	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Replace(peers("b")))
}
