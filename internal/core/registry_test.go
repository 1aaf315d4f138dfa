package core

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/domain"
)

func TestRegistry_GetOrCreate_ReturnsExisting(t *testing.T) {
	r := NewRegistry(Options{})

	s1, created := r.GetOrCreate("s1", "alice", false)
	require.True(t, created)

	s2, created := r.GetOrCreate("s1", "bob", true)
	require.False(t, created)
	require.Same(t, s1, s2)
	// Creation-time attributes are immutable; the second caller's
	// arguments are ignored.
	require.Equal(t, domain.ParticipantID("alice"), s2.HostID())
	require.False(t, s2.RequiresApproval)
}

func TestRegistry_GetOrCreate_ConcurrentSingleCreation(t *testing.T) {
	r := NewRegistry(Options{})

	const callers = 64
	var wg sync.WaitGroup
	sessions := make([]*Session, callers)
	createdCount := make([]bool, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], createdCount[i] = r.GetOrCreate("race", "host", true)
		}(i)
	}
	wg.Wait()

	creations := 0
	for i := 0; i < callers; i++ {
		require.Same(t, sessions[0], sessions[i])
		if createdCount[i] {
			creations++
		}
	}
	require.Equal(t, 1, creations)
}

func TestRegistry_Get_NotFound(t *testing.T) {
	r := NewRegistry(Options{})
	_, err := r.Get("missing")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_Remove_NoopWhenNonEmpty(t *testing.T) {
	r := NewRegistry(Options{})
	s, _ := r.GetOrCreate("s1", "alice", false)

	p, err := domain.NewParticipant("alice", "Alice", true)
	require.NoError(t, err)
	require.NoError(t, s.AddParticipant(p))

	r.Remove("s1")

	got, err := r.Get("s1")
	require.NoError(t, err)
	require.Equal(t, 1, got.ParticipantCount())
}

func TestRegistry_Remove_NoopWhenAbsent(t *testing.T) {
	r := NewRegistry(Options{})
	r.Remove("missing")
}

func TestRegistry_Remove_DeniesPendingOnTeardown(t *testing.T) {
	r := NewRegistry(Options{})
	s, _ := r.GetOrCreate("s1", "host", true)

	ticket, err := s.RequestAdmission("dave", "Dave")
	require.NoError(t, err)

	r.Remove("s1")

	<-ticket.Resolved()
	require.Equal(t, domain.AdmissionDenied, ticket.Status())

	_, err = r.Get("s1")
	require.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRegistry_List(t *testing.T) {
	r := NewRegistry(Options{})
	s, _ := r.GetOrCreate("s1", "alice", false)
	r.GetOrCreate("s2", "bob", true)

	p, err := domain.NewParticipant("alice", "Alice", true)
	require.NoError(t, err)
	require.NoError(t, s.AddParticipant(p))

	infos := r.List()
	require.Len(t, infos, 2)

	byID := make(map[domain.SessionID]SessionInfo, len(infos))
	for _, info := range infos {
		byID[info.ID] = info
	}
	require.Equal(t, 1, byID["s1"].ParticipantCount)
	require.Equal(t, 0, byID["s2"].ParticipantCount)
	require.True(t, byID["s2"].RequiresApproval)
}
