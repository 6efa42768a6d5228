package tokens

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kopiloka-assistant/internal/domain"
)

func TestCount(t *testing.T) {
	c, err := New()
	require.NoError(t, err)

	require.Equal(t, 0, c.Count("", nil))

	one := c.Count("", []domain.ChatMessage{{Role: "user", Content: "hello"}})
	require.Equal(t, 1+perTurnOverhead, one)

	withSystem := c.Count("Kamu adalah KOPI AI.", []domain.ChatMessage{{Role: "user", Content: "hello"}})
	require.Greater(t, withSystem, one)

	two := c.Count("", []domain.ChatMessage{
		{Role: "user", Content: "hello"},
		{Role: "assistant", Content: "hello"},
	})
	require.Equal(t, 2*one, two)
}

func TestCount_Placeholder(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	require.Equal(t, 1+perTurnOverhead, c.Count("", []domain.ChatMessage{{Role: "user", Content: "."}}))
}
