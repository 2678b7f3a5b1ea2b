package docmodel

import "howett.net/plist"

// rawArchive is the wire shape every NSKeyedArchiver plist uses: a flat
// object table plus a small map of named roots, with every cross-reference
// encoded as a CF$UID index into that table rather than inline nesting.
type rawArchive struct {
	Archiver string                 `plist:"$archiver"`
	Objects  []interface{}          `plist:"$objects"`
	Top      map[string]interface{} `plist:"$top"`
	Version  uint64                 `plist:"$version"`
}

// resolve walks v, replacing every plist.UID back-reference with the object
// it points to. NSDictionary/NSArray archive as {$class, NS.keys, NS.objects}
// or {$class, NS.objects}; resolve collapses those into a plain
// map[string]interface{} or []interface{} so callers never see the
// archiver's class-wrapper shape.
func resolve(objects []interface{}, v interface{}) interface{} {
	switch t := v.(type) {
	case plist.UID:
		idx := int(t)
		if idx < 0 || idx >= len(objects) {
			return nil
		}
		return resolve(objects, objects[idx])

	case string:
		if t == "$null" {
			return nil
		}
		return t

	case map[string]interface{}:
		if keys, ok := t["NS.keys"].([]interface{}); ok {
			vals, _ := t["NS.objects"].([]interface{})
			out := make(map[string]interface{}, len(keys))
			for i, k := range keys {
				key, ok := resolve(objects, k).(string)
				if !ok || i >= len(vals) {
					continue
				}
				out[key] = resolve(objects, vals[i])
			}
			return out
		}
		if objs, ok := t["NS.objects"].([]interface{}); ok {
			out := make([]interface{}, len(objs))
			for i, o := range objs {
				out[i] = resolve(objects, o)
			}
			return out
		}
		if s, ok := t["NS.string"]; ok {
			return resolve(objects, s)
		}
		if d, ok := t["NS.data"]; ok {
			return resolve(objects, d)
		}

		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if k == "$class" {
				continue
			}
			out[k] = resolve(objects, val)
		}
		return out

	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = resolve(objects, e)
		}
		return out

	default:
		return v
	}
}

// decodeKeyedArchive unmarshals raw NSKeyedArchiver plist bytes and returns
// the fully resolved "root" object as a map, ready for field extraction.
func decodeKeyedArchive(data []byte) (map[string]interface{}, error) {
	var raw rawArchive
	if _, err := plist.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	rootRef, ok := raw.Top["root"]
	if !ok {
		for _, v := range raw.Top {
			rootRef = v
			break
		}
	}

	root := resolve(raw.Objects, rootRef)
	m, _ := root.(map[string]interface{})
	return m, nil
}
