package docmodel

import (
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"

	"github.com/protomaps/drawing-salvage/internal/salvageerr"
	"github.com/protomaps/drawing-salvage/internal/tiles"
)

var sizeStringPattern = regexp.MustCompile(`\{?\s*([0-9]+)\s*,\s*([0-9]+)\s*\}?`)

// DocumentReader parses a document's property-list sidecar into a Document.
type DocumentReader struct {
	logger *log.Logger
}

// NewDocumentReader builds a reader that logs through logger.
func NewDocumentReader(logger *log.Logger) *DocumentReader {
	return &DocumentReader{logger: logger}
}

// Read decodes the keyed-archive plist at path into a Document (spec §4.9).
func (r *DocumentReader) Read(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return r.Parse(data)
}

// Parse decodes already-loaded keyed-archive plist bytes into a Document.
func (r *DocumentReader) Parse(data []byte) (*Document, error) {
	root, err := decodeKeyedArchive(data)
	if err != nil {
		return nil, fmt.Errorf("docmodel: decoding keyed archive: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("docmodel: archive has no root object")
	}

	doc := &Document{
		TileSize:            asInt(root["tileSize"]),
		Orientation:         orientationFromRaw(asInt(root["orientation"])),
		FlippedHorizontally: asBool(root["flippedHorizontally"]),
		FlippedVertically:   asBool(root["flippedVertically"]),
		Composite:           objectUUID(root["composite"]),
		Name:                asString(root["name"]),
		Layers:              uuidList(root["layers"]),
		UnwrappedLayers:     uuidList(root["unwrappedLayers"]),
	}

	if w, h, ok := parseSize(asString(root["size"])); ok {
		doc.SizeW, doc.SizeH = w, h
	} else if r.logger != nil {
		r.logger.Printf("docmodel: could not parse size field %q", root["size"])
	}

	return doc, nil
}

// orientationFromRaw maps the document's orientation field, a code in
// 1..4 (spec §6), not a degree value: 1 is upright, 2 is upside down, 3 and
// 4 are the two 90-degree rotations.
func orientationFromRaw(v int) tiles.Orientation {
	switch v {
	case 2:
		return tiles.Orientation180
	case 3:
		return tiles.Orientation90CW
	case 4:
		return tiles.Orientation90CCW
	default:
		return tiles.Orientation0
	}
}

func parseSize(s string) (int, int, bool) {
	m := sizeStringPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, 0, false
	}
	var w, h int
	if _, err := fmt.Sscanf(m[1], "%d", &w); err != nil {
		return 0, 0, false
	}
	if _, err := fmt.Sscanf(m[2], "%d", &h); err != nil {
		return 0, 0, false
	}
	return w, h, true
}

func asInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case uint64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// objectUUID dereferences a resolved NSObject one level to its "UUID"
// field (spec §4.9: "composite" is a reference to an object carrying its
// own UUID string, not the UUID string itself).
func objectUUID(v interface{}) string {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return ""
	}
	return asString(obj["UUID"])
}

// uuidList dereferences a resolved NSArray of layer objects into their
// UUID strings (spec §4.9: "layers"/"unwrappedLayers" hold objects, not
// bare UUID strings).
func uuidList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if uuid := objectUUID(it); uuid != "" {
			out = append(out, uuid)
		}
	}
	return out
}

// uuidPattern matches the canonical 8-4-4-4-12 hex UUID shape (spec §4.9).
var uuidPattern = regexp.MustCompile(`^[0-9A-Fa-f]{8}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{4}-[0-9A-Fa-f]{12}$`)

// Validate checks every UUID-shaped resource reference in doc against the
// recovered archive's file names, using substring containment per spec
// §4.9 rather than exact identity (a recovered file name may carry a path
// prefix or extension around the bare UUID). It returns the UUIDs that
// matched no file name, per SPEC_FULL §11 (empty slice means fully
// resolvable).
func Validate(doc *Document, fileNames []string) []string {
	var missing []string
	for _, uuid := range doc.AllResourceUUIDs() {
		if !uuidPattern.MatchString(uuid) {
			continue
		}
		if !anyContainsUUID(fileNames, uuid) {
			missing = append(missing, uuid)
		}
	}
	return missing
}

func anyContainsUUID(fileNames []string, uuid string) bool {
	needle := strings.ToLower(uuid)
	for _, name := range fileNames {
		if strings.Contains(strings.ToLower(name), needle) {
			return true
		}
	}
	return false
}

// MissingResourceErrors converts Validate's result into the pipeline's
// typed error kind, one per unresolved UUID.
func MissingResourceErrors(missing []string) []error {
	errs := make([]error, 0, len(missing))
	for _, uuid := range missing {
		errs = append(errs, &salvageerr.MissingResource{UUID: uuid})
	}
	return errs
}
