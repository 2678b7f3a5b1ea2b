package tiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChunkName(t *testing.T) {
	uuid, col, row, err := ParseChunkName("11111111-1111-1111-1111-111111111111/3~7.chunk")
	require.NoError(t, err)
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", uuid)
	assert.Equal(t, 3, col)
	assert.Equal(t, 7, row)
}

func TestParseChunkNameRejectsMalformed(t *testing.T) {
	_, _, _, err := ParseChunkName("not-a-chunk-name.txt")
	require.Error(t, err)
}
