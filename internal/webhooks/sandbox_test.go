package webhooks

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hypermarketllc/hookline/internal/dispatchlog"
)

func TestSandbox_EnterClearsStaleResult(t *testing.T) {
	s := NewSandbox()
	s.SetResult(&dispatchlog.Entry{ID: "stale"})

	s.Enter()
	require.True(t, s.Testing())
	require.Nil(t, s.Result())
}

func TestSandbox_ExitKeepsResult(t *testing.T) {
	s := NewSandbox()
	s.Enter()
	s.SetResult(&dispatchlog.Entry{ID: "outcome"})

	s.Exit()
	require.False(t, s.Testing())
	require.NotNil(t, s.Result())
	require.Equal(t, "outcome", s.Result().ID)
}

func TestSandbox_SecondResultOverwritesFirst(t *testing.T) {
	s := NewSandbox()
	s.Enter()
	s.SetResult(&dispatchlog.Entry{ID: "first"})
	s.SetResult(&dispatchlog.Entry{ID: "second"})

	require.Equal(t, "second", s.Result().ID)
}

func TestSandbox_Clear(t *testing.T) {
	s := NewSandbox()
	s.SetResult(&dispatchlog.Entry{ID: "outcome"})

	s.Clear()
	require.Nil(t, s.Result())
}
