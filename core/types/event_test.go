package types

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEventCloneIsDeep(t *testing.T) {
	evt := &Event{Type: "content.created", Attributes: map[string]string{"contentIndex": "4", "createdAt": "-5"}}
	clone := evt.Clone()
	clone.Attributes["contentIndex"] = "9"
	require.Equal(t, "4", evt.Attr("contentIndex"))
	require.EqualValues(t, 4, evt.Uint("contentIndex"))
	require.EqualValues(t, -5, evt.Int("createdAt"))
	require.Zero(t, evt.Uint("missing"))
	require.Equal(t, []string{"contentIndex", "createdAt"}, evt.Keys())

	var nilEvent *Event
	require.Nil(t, nilEvent.Clone())
	require.Equal(t, "", nilEvent.Attr("x"))
}
