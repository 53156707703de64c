package cache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	require.Equal(t, "credit:meeting:7:stats", Key("meeting", "7", "stats"))
	require.Equal(t, "credit:meetings:*", Key("meetings", "*"))
}
