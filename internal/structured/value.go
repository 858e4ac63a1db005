package structured

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrDecode reports content that is not a well-formed structured document.
// The ingestion coordinator falls back to plain-text chunking on it.
var ErrDecode = errors.New("invalid structured content")

type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindBool
	KindNull
	KindArray
	KindObject
)

// Member is one object entry. Objects keep their members in input order so
// rendered prose and "first N" caps follow the author's ordering.
type Member struct {
	Key   string
	Value Value
}

// Value is a tagged JSON value. Exactly one payload field is meaningful,
// selected by Kind.
type Value struct {
	Kind Kind
	Str  string
	Num  string
	Bool bool
	Arr  []Value
	Obj  []Member
}

// Decode parses content into a Value tree. Numbers keep their literal form.
// Trailing non-whitespace data is an error, matching strict whole-document
// parsing.
func Decode(content string) (Value, error) {
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, fmt.Errorf("%w: trailing data", ErrDecode)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}
	return decodeFrom(dec, tok)
}

func decodeFrom(dec *json.Decoder, tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		default:
			return Value{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	case string:
		return Value{Kind: KindString, Str: t}, nil
	case json.Number:
		return Value{Kind: KindNumber, Num: t.String()}, nil
	case bool:
		return Value{Kind: KindBool, Bool: t}, nil
	case nil:
		return Value{Kind: KindNull}, nil
	default:
		return Value{}, fmt.Errorf("unexpected token %v", tok)
	}
}

func decodeObject(dec *json.Decoder) (Value, error) {
	var members []Member
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return Value{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return Value{}, fmt.Errorf("object key is not a string: %v", keyTok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		members = append(members, Member{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil { // consume '}'
		return Value{}, err
	}
	return Value{Kind: KindObject, Obj: members}, nil
}

func decodeArray(dec *json.Decoder) (Value, error) {
	var elems []Value
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return Value{}, err
		}
		elems = append(elems, val)
	}
	if _, err := dec.Token(); err != nil { // consume ']'
		return Value{}, err
	}
	return Value{Kind: KindArray, Arr: elems}, nil
}

// encode renders v back to compact JSON; used only for the size threshold
// that decides whether a nested object deserves its own chunk.
func encode(v Value) string {
	var sb strings.Builder
	encodeTo(&sb, v)
	return sb.String()
}

func encodeTo(sb *strings.Builder, v Value) {
	switch v.Kind {
	case KindString:
		b, _ := json.Marshal(v.Str)
		sb.Write(b)
	case KindNumber:
		sb.WriteString(v.Num)
	case KindBool:
		if v.Bool {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case KindNull:
		sb.WriteString("null")
	case KindArray:
		sb.WriteByte('[')
		for i, e := range v.Arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			encodeTo(sb, e)
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteByte('{')
		for i, m := range v.Obj {
			if i > 0 {
				sb.WriteByte(',')
			}
			b, _ := json.Marshal(m.Key)
			sb.Write(b)
			sb.WriteByte(':')
			encodeTo(sb, m.Value)
		}
		sb.WriteByte('}')
	}
}
