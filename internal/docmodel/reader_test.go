package docmodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"howett.net/plist"

	"github.com/protomaps/drawing-salvage/internal/tiles"
)

func buildArchive(t *testing.T, root map[string]interface{}) []byte {
	t.Helper()
	root["$class"] = plist.UID(2)

	archive := map[string]interface{}{
		"$archiver": "NSKeyedArchiver",
		"$version":  uint64(100000),
		"$objects": []interface{}{
			"$null",
			root,
			map[string]interface{}{"$classname": "Document"},
		},
		"$top": map[string]interface{}{"root": plist.UID(1)},
	}

	data, err := plist.Marshal(archive, plist.XMLFormat)
	require.NoError(t, err)
	return data
}

func TestDocumentReaderParsesFields(t *testing.T) {
	data := buildArchive(t, map[string]interface{}{
		"tileSize":            int64(256),
		"orientation":         int64(3),
		"flippedHorizontally": true,
		"flippedVertically":   false,
		"size":                "{1024, 768}",
		"composite":           map[string]interface{}{"UUID": "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE"},
		"layers": []interface{}{
			map[string]interface{}{"UUID": "11111111-1111-1111-1111-111111111111"},
			map[string]interface{}{"UUID": "22222222-2222-2222-2222-222222222222"},
		},
		"unwrappedLayers": []interface{}{},
		"name":            "My Drawing",
	})

	doc, err := NewDocumentReader(nil).Parse(data)
	require.NoError(t, err)

	assert.Equal(t, 256, doc.TileSize)
	assert.Equal(t, tiles.Orientation90CW, doc.Orientation)
	assert.True(t, doc.FlippedHorizontally)
	assert.False(t, doc.FlippedVertically)
	assert.Equal(t, 1024, doc.SizeW)
	assert.Equal(t, 768, doc.SizeH)
	assert.Equal(t, "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE", doc.Composite)
	assert.Equal(t, "My Drawing", doc.Name)
	require.Len(t, doc.Layers, 2)
}

func TestValidateReportsMissingUUIDs(t *testing.T) {
	doc := &Document{
		Composite: "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE",
		Layers: []string{
			"11111111-1111-1111-1111-111111111111",
			"22222222-2222-2222-2222-222222222222",
		},
	}
	fileNames := []string{
		"layers/11111111-1111-1111-1111-111111111111.chunks",
		"preview/AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE.png",
	}

	missing := Validate(doc, fileNames)
	require.Len(t, missing, 1)
	assert.Equal(t, "22222222-2222-2222-2222-222222222222", missing[0])
}

func TestValidateReturnsEmptyWhenAllResolved(t *testing.T) {
	doc := &Document{Composite: "AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE"}
	fileNames := []string{"AAAAAAAA-BBBB-CCCC-DDDD-EEEEEEEEEEEE"}
	assert.Empty(t, Validate(doc, fileNames))
}
