package tiles

import (
	"fmt"
	"regexp"
	"strconv"
)

var chunkNamePattern = regexp.MustCompile(`^(.+)/([0-9]+)~([0-9]+)\.chunk$`)

// ParseChunkName splits a tile chunk's archive-entry name, of the form
// "<layer-uuid>/<column>~<row>.chunk" (spec §3 ChunkRange), into its layer
// UUID and zero-indexed grid position.
func ParseChunkName(name string) (layerUUID string, col, row int, err error) {
	m := chunkNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", 0, 0, fmt.Errorf("tiles: %q is not a chunk entry name", name)
	}
	col, err = strconv.Atoi(m[2])
	if err != nil {
		return "", 0, 0, fmt.Errorf("tiles: bad column in %q: %w", name, err)
	}
	row, err = strconv.Atoi(m[3])
	if err != nil {
		return "", 0, 0, fmt.Errorf("tiles: bad row in %q: %w", name, err)
	}
	return m[1], col, row, nil
}
