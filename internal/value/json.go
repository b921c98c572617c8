package value

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// dateSentinelKey is the reserved wrapper key dates are encoded under, per
// §4.2: dates become {"$$date": <millis>}.
const dateSentinelKey = "$$date"

// MarshalJSON implements json.Marshaler. Object key order is preserved
// (encoding/json cannot do this for map[string]any, which is why Value
// hand-writes object encoding instead of round-tripping through it).
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case Undefined:
		// Undefined has no JSON representation; callers should strip it
		// from objects/arrays before marshaling (Object.Set never stores
		// it deliberately, but arrays can carry one through $push, etc.)
		buf.WriteString("null")
		return nil
	case Null:
		buf.WriteString("null")
		return nil
	case Bool:
		if v.b {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
		return nil
	case Number:
		enc, err := json.Marshal(v.n)
		if err != nil {
			return err
		}
		buf.Write(enc)
		return nil
	case String:
		enc, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(enc)
		return nil
	case Date:
		buf.WriteByte('{')
		buf.WriteString(`"$$date":`)
		fmt.Fprintf(buf, "%d", v.date)
		buf.WriteByte('}')
		return nil
	case Array:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case Func:
		return fmt.Errorf("value: cannot serialize a $where predicate")
	case Object:
		buf.WriteByte('{')
		for i, k := range v.obj.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			keyEnc, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(keyEnc)
			buf.WriteByte(':')
			if err := v.obj.Get(k).writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	default:
		return fmt.Errorf("value: unknown kind %d", v.kind)
	}
}

// UnmarshalJSON implements json.Unmarshaler, inverting the $$date
// transform wherever a single-key {"$$date": n} object appears. Decoding
// walks the token stream directly (rather than through
// map[string]interface{}) so object key order survives the round trip —
// Go map iteration order is randomized per range, which would otherwise
// break reproducible re-serialization and compaction idempotency.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeToken(dec, tok)
}

func decodeToken(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case nil:
		return Nil(), nil
	case bool:
		return Boolean(t), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, err
		}
		return Num(f), nil
	case string:
		return Str(t), nil
	case json.Delim:
		switch t {
		case '[':
			items := make([]Value, 0, 4)
			for dec.More() {
				item, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // consume ']'
				return Value{}, err
			}
			return Value{kind: Array, arr: items}, nil
		case '{':
			o := NewObj()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, _ := keyTok.(string)
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, err
				}
				o.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // consume '}'
				return Value{}, err
			}
			if o.Len() == 1 && o.keys[0] == dateSentinelKey {
				if n := o.Get(dateSentinelKey); n.kind == Number {
					return DateMillis(int64(n.n)), nil
				}
			}
			return ObjVal(o), nil
		}
	}
	return Undef(), fmt.Errorf("value: unexpected token %v", tok)
}
