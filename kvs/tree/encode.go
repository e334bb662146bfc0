package tree

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// hashAlgo is the fixed hash algorithm used to compute blob references.
// spec.md §3 leaves the algorithm configurable; this core hardcodes sha256,
// matching the original's default of a single compiled-in digest.
const hashAlgo = "sha256"

// MaxRefLen bounds the length of a blob reference string ("algo:hex"),
// grounding spec.md §7's "invalid ... bad reference string length" error.
const MaxRefLen = len(hashAlgo) + 1 + sha256.Size*2

// direntWire is the canonical on-the-wire shape of a Dirent: exactly one
// field populated, matching the original's single-key json_object
// representation ({"DIRREF": href}, {"FILEVAL": val}, ...).
type direntWire struct {
	FileVal *Value   `json:"FILEVAL,omitempty"`
	FileRef *string  `json:"FILEREF,omitempty"`
	DirVal  *dirWire `json:"DIRVAL,omitempty"`
	DirRef  *string  `json:"DIRREF,omitempty"`
	LinkVal *string  `json:"LINKVAL,omitempty"`
}

// dirWire is the canonical on-the-wire shape of a Directory: a JSON object
// mapping name to dirent, with keys emitted in sorted order so that
// identical directories always encode to identical bytes (spec.md §8
// invariant 5, hash determinism).
type dirWire map[string]direntWire

// EncodeDirent renders a Dirent to its canonical byte encoding.
func EncodeDirent(d Dirent) ([]byte, error) {
	w, err := toWireDirent(d)
	if err != nil {
		return nil, err
	}

	return encodeCanonical(w)
}

// EncodeDirectory renders a Directory to its canonical byte encoding.
func EncodeDirectory(d Directory) ([]byte, error) {
	w, err := toWireDir(d)
	if err != nil {
		return nil, err
	}

	return encodeCanonical(w)
}

// EncodeValue renders a plain Value to its canonical byte encoding, used
// when a FILEREF blob's content is a bare value rather than a directory.
func EncodeValue(v Value) ([]byte, error) {
	return encodeCanonical(v)
}

// DecodeDirent parses the canonical encoding of a Dirent. It decodes via a
// raw key-presence map rather than a struct of pointers, so a FILEVAL whose
// value is JSON null is distinguished correctly from an unset field
// (encoding/json collapses "*T: null" and "*T: absent" to the same nil
// pointer, which would otherwise lose that case).
func DecodeDirent(b []byte) (Dirent, error) {
	var raw map[string]json.RawMessage

	if err := json.Unmarshal(b, &raw); err != nil {
		return Dirent{}, fmt.Errorf("decode dirent: %w", err)
	}

	return direntFromRaw(raw)
}

// DecodeDirectory parses the canonical encoding of a Directory.
func DecodeDirectory(b []byte) (Directory, error) {
	var raw map[string]map[string]json.RawMessage

	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode directory: %w", err)
	}

	d := make(Directory, len(raw))

	for name, entryRaw := range raw {
		entry, err := direntFromRaw(entryRaw)
		if err != nil {
			return nil, fmt.Errorf("directory entry %q: %w", name, err)
		}

		d[name] = entry
	}

	return d, nil
}

func direntFromRaw(raw map[string]json.RawMessage) (Dirent, error) {
	if len(raw) != 1 {
		return Dirent{}, ErrInvalidDirent
	}

	for key, val := range raw {
		switch key {
		case "FILEVAL":
			var v Value
			if err := json.Unmarshal(val, &v); err != nil {
				return Dirent{}, err
			}
			return NewFileVal(v), nil
		case "FILEREF":
			var ref string
			if err := json.Unmarshal(val, &ref); err != nil {
				return Dirent{}, err
			}
			return NewFileRef(ref), nil
		case "DIRVAL":
			var dirRaw map[string]map[string]json.RawMessage
			if err := json.Unmarshal(val, &dirRaw); err != nil {
				return Dirent{}, err
			}
			dir := make(Directory, len(dirRaw))
			for name, entryRaw := range dirRaw {
				entry, err := direntFromRaw(entryRaw)
				if err != nil {
					return Dirent{}, fmt.Errorf("directory entry %q: %w", name, err)
				}
				dir[name] = entry
			}
			return NewDirVal(dir), nil
		case "DIRREF":
			var ref string
			if err := json.Unmarshal(val, &ref); err != nil {
				return Dirent{}, err
			}
			return NewDirRef(ref), nil
		case "LINKVAL":
			var link string
			if err := json.Unmarshal(val, &link); err != nil {
				return Dirent{}, err
			}
			return NewLinkVal(link), nil
		default:
			return Dirent{}, ErrInvalidDirent
		}
	}

	return Dirent{}, ErrInvalidDirent
}

// DecodeValue parses the canonical encoding of a bare Value.
func DecodeValue(b []byte) (Value, error) {
	var v Value

	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}

	return v, nil
}

// HashOf computes the blob reference for an already-canonically-encoded
// byte string. Encoding twice and hashing twice always yields the same
// reference (spec.md §8 invariant 5) because encodeCanonical always sorts
// object keys before marshaling.
func HashOf(encoded []byte) string {
	sum := sha256.Sum256(encoded)

	return hashAlgo + ":" + hex.EncodeToString(sum[:])
}

// ValidateRef reports whether ref could plausibly be a blob reference
// produced by HashOf.
func ValidateRef(ref string) bool {
	if len(ref) == 0 || len(ref) > MaxRefLen {
		return false
	}

	prefix := hashAlgo + ":"

	return len(ref) == len(prefix)+sha256.Size*2 && ref[:len(prefix)] == prefix
}

func toWireDirent(d Dirent) (direntWire, error) {
	var w direntWire

	switch d.Tag {
	case FileVal:
		w.FileVal = &d.FileVal
	case FileRef:
		w.FileRef = &d.FileRef
	case DirVal:
		dw, err := toWireDir(d.DirVal)
		if err != nil {
			return direntWire{}, err
		}
		w.DirVal = &dw
	case DirRef:
		w.DirRef = &d.DirRef
	case LinkVal:
		w.LinkVal = &d.LinkVal
	default:
		return direntWire{}, ErrInvalidDirent
	}

	return w, nil
}

func toWireDir(d Directory) (dirWire, error) {
	w := make(dirWire, len(d))

	for name, entry := range d {
		if err := ValidateName(name); err != nil {
			return nil, fmt.Errorf("directory entry %q: %w", name, err)
		}

		ew, err := toWireDirent(entry)
		if err != nil {
			return nil, fmt.Errorf("directory entry %q: %w", name, err)
		}

		w[name] = ew
	}

	return w, nil
}

// encodeCanonical marshals v to JSON with object keys sorted, so that two
// structurally identical values always produce byte-identical output
// regardless of map iteration order.
func encodeCanonical(v interface{}) ([]byte, error) {
	normalized, err := normalize(v)
	if err != nil {
		return nil, err
	}

	return json.Marshal(normalized)
}

// normalize walks v (already a json.Marshal-able tree, possibly containing
// map[string]interface{} with unordered keys) and rewrites any map into an
// orderedObject so json.Marshal emits its keys in sorted order.
func normalize(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		return normalizeMap(t)
	case dirWire:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = e
		}
		return normalizeMap(m)
	case *dirWire:
		return normalize(*t)
	case direntWire:
		return normalizeDirentWire(t)
	default:
		// Round-trip through json to flatten struct fields into a generic
		// tree that normalizeMap can sort, so struct field order never
		// leaks into the canonical encoding either.
		raw, err := json.Marshal(t)
		if err != nil {
			return nil, err
		}

		var generic interface{}
		if err := json.Unmarshal(raw, &generic); err != nil {
			return nil, err
		}

		if m, ok := generic.(map[string]interface{}); ok {
			return normalizeMap(m)
		}

		if arr, ok := generic.([]interface{}); ok {
			out := make([]interface{}, len(arr))
			for i, e := range arr {
				n, err := normalize(e)
				if err != nil {
					return nil, err
				}
				out[i] = n
			}
			return out, nil
		}

		return generic, nil
	}
}

func normalizeDirentWire(w direntWire) (interface{}, error) {
	raw, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}

	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, err
	}

	return normalizeMap(generic)
}

func normalizeMap(m map[string]interface{}) (*orderedObject, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	obj := &orderedObject{}
	for _, k := range keys {
		nv, err := normalize(m[k])
		if err != nil {
			return nil, err
		}
		obj.pairs = append(obj.pairs, kvPair{key: k, value: nv})
	}

	return obj, nil
}

type kvPair struct {
	key   string
	value interface{}
}

// orderedObject marshals as a JSON object with keys in the exact order
// they were appended, letting normalizeMap force sorted-key output.
type orderedObject struct {
	pairs []kvPair
}

func (o *orderedObject) MarshalJSON() ([]byte, error) {
	buf := []byte{'{'}

	for i, p := range o.pairs {
		if i > 0 {
			buf = append(buf, ',')
		}

		keyJSON, err := json.Marshal(p.key)
		if err != nil {
			return nil, err
		}

		valJSON, err := json.Marshal(p.value)
		if err != nil {
			return nil, err
		}

		buf = append(buf, keyJSON...)
		buf = append(buf, ':')
		buf = append(buf, valJSON...)
	}

	buf = append(buf, '}')

	return buf, nil
}
