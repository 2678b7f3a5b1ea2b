package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputPathForSubstitutesJSONToPNG(t *testing.T) {
	assert.Equal(t,
		"/out/png/layer-0.png",
		outputPathFor("/out/json/layer-0.json"))
}

func TestOutputPathForLeavesUnmatchedPathAlone(t *testing.T) {
	assert.Equal(t, "/out/data/layer-0.txt", outputPathFor("/out/data/layer-0.txt"))
}
