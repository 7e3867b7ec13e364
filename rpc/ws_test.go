package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventFilterPrefixes(t *testing.T) {
	require.True(t, parseEventFilter("").admits("content.created"))
	f := parseEventFilter(" creator., content.comment ,")
	require.Len(t, f, 2)
	require.True(t, f.admits("creator.registered"))
	require.True(t, f.admits("content.commented"))
	require.False(t, f.admits("content.created"))
}
