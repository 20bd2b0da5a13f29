package errorsx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyUsageLimitMatchesE6(t *testing.T) {
	c := Classify("cursor-acp", "You've hit your Cursor usage limit")
	require.Equal(t, CategoryQuota, c.Category)
	require.Equal(t, `cursor-acp error: You've hit your Cursor usage limit`, c.UserMessage)
	require.True(t, c.Recoverable)
}

func TestClassifyUnknownFallsThrough(t *testing.T) {
	c := Classify("dodo-agent", "something inexplicable happened")
	require.Equal(t, CategoryUnknown, c.Category)
	require.False(t, c.Recoverable)
}
