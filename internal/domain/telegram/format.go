package telegram

import (
	"github.com/go-faster/jx"

	"historyloader/internal/errs"
)

// singleChatKeys is the exact key set a single-chat export root carries.
var singleChatKeys = map[string]struct{}{
	"name": {}, "type": {}, "id": {}, "messages": {},
}

// rawObject captures an object's members as raw, not-yet-decoded JSON
// values keyed by field name. This is the per-key dispatch shape C4
// needs: one jx pass collects the member set (enforcing the "unknown key
// is fatal" contract at the point of collection is left to callers, who
// know their own permitted key set), then each value is replayed through
// a fresh jx.Decoder as the caller's schema demands.
type rawObject struct {
	order []string
	byKey map[string]jx.Raw
}

func (o rawObject) has(key string) bool {
	_, ok := o.byKey[key]
	return ok
}

func (o rawObject) dec(key string) *jx.Decoder {
	raw, ok := o.byKey[key]
	if !ok {
		return nil
	}
	return jx.DecodeBytes(raw)
}

// decodeObject reads the next JSON value from dec, which must be an
// object, into a rawObject.
func decodeObject(dec *jx.Decoder, path string) (rawObject, error) {
	obj := rawObject{byKey: make(map[string]jx.Raw)}
	err := dec.ObjBytes(func(d *jx.Decoder, key []byte) error {
		raw, err := d.Raw()
		if err != nil {
			return errs.Wrapf(errs.Encoding, err, "%s.%s", path, key)
		}
		k := string(key)
		obj.order = append(obj.order, k)
		obj.byKey[k] = raw
		return nil
	})
	if err != nil {
		return rawObject{}, errs.Annotatef(err, "%s", path)
	}
	return obj, nil
}

// requireKeys fails with UnknownKey if obj carries any key outside
// allowed, and with UnknownKey again (reusing the kind — a missing
// required key is the same class of schema violation) if any of
// required is absent.
func requireKeys(obj rawObject, path string, required, optional []string) error {
	allowed := make(map[string]struct{}, len(required)+len(optional))
	for _, k := range required {
		allowed[k] = struct{}{}
	}
	for _, k := range optional {
		allowed[k] = struct{}{}
	}
	for _, k := range obj.order {
		if _, ok := allowed[k]; !ok {
			return errs.New(errs.UnknownKey, "%s.%s", path, k)
		}
	}
	for _, k := range required {
		if !obj.has(k) {
			return errs.New(errs.UnknownKey, "%s: missing required key %q", path, k)
		}
	}
	return nil
}

// isSingleChatExport reports whether root's key set is a subset of
// {"name","type","id","messages"} — the single-chat export's exact
// shape — as opposed to a full export's much richer top-level schema.
func isSingleChatExport(root rawObject) bool {
	for _, k := range root.order {
		if _, ok := singleChatKeys[k]; !ok {
			return false
		}
	}
	return true
}

// DetectAndDecodeRoot reads the top-level JSON object from data and
// reports whether it is a single-chat export.
func DetectAndDecodeRoot(data []byte) (root rawObject, singleChat bool, err error) {
	dec := jx.DecodeBytes(data)
	root, err = decodeObject(dec, "$")
	if err != nil {
		return rawObject{}, false, err
	}
	return root, isSingleChatExport(root), nil
}

func strField(obj rawObject, key, path string) (string, error) {
	d := obj.dec(key)
	if d == nil {
		return "", nil
	}
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	s, err := d.Str()
	if err != nil {
		return "", errs.Wrapf(errs.Encoding, err, "%s.%s", path, key)
	}
	return s, nil
}

// intField reads key as an integer. Telegram's own export emits ids and
// counters as JSON numbers but the date_unixtime/edited_unixtime
// timestamps as numeric strings, so both encodings are accepted here
// rather than forcing every call site to pick one.
func intField(obj rawObject, key, path string) (int64, error) {
	d := obj.dec(key)
	if d == nil {
		return 0, nil
	}
	switch d.Next() {
	case jx.Null:
		return 0, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, errs.Wrapf(errs.Encoding, err, "%s.%s", path, key)
		}
		v, ok := parseDecimal(s)
		if !ok {
			return 0, errs.New(errs.Encoding, "%s.%s: %q is not an integer", path, key, s)
		}
		return v, nil
	default:
		v, err := d.Int64()
		if err != nil {
			return 0, errs.Wrapf(errs.Encoding, err, "%s.%s", path, key)
		}
		return v, nil
	}
}

// numericOrTaggedID parses either a bare JSON number or a Telegram
// "user<N>"/"channel<N>" string id, returning the numeric id.
func numericOrTaggedID(obj rawObject, key, path string) (int64, bool, error) {
	d := obj.dec(key)
	if d == nil {
		return 0, false, nil
	}
	switch d.Next() {
	case jx.Null:
		return 0, false, d.Null()
	case jx.Number:
		v, err := d.Int64()
		if err != nil {
			return 0, false, errs.Wrapf(errs.Encoding, err, "%s.%s", path, key)
		}
		return v, true, nil
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, false, errs.Wrapf(errs.Encoding, err, "%s.%s", path, key)
		}
		id, ok := parseTaggedID(s)
		if !ok {
			return 0, false, errs.New(errs.Encoding, "%s.%s: unrecognised tagged id %q", path, key, s)
		}
		return id, true, nil
	default:
		return 0, false, errs.New(errs.Encoding, "%s.%s: expected number or tagged id string", path, key)
	}
}

// parseTaggedID parses "user<N>" or "channel<N>" into N.
func parseTaggedID(s string) (int64, bool) {
	for _, prefix := range []string{"user", "channel"} {
		if len(s) > len(prefix) && s[:len(prefix)] == prefix {
			n, ok := parseDecimal(s[len(prefix):])
			if ok {
				return n, true
			}
		}
	}
	return 0, false
}

func parseDecimal(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int64(r-'0')
	}
	return n, true
}
