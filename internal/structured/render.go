package structured

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// simpleListMax is the largest simple-typed list rendered item by item;
	// longer lists show the first listPreview entries plus a count.
	simpleListMax = 5
	listPreview   = 3
	// complexListMax bounds how many elements of a mixed list are rendered
	// inline when the list appears as a plain value.
	complexListMax = 5
)

// ValueToText renders a value as natural-language text: strings pass through,
// numbers stringify, booleans become yes/no, lists are joined or summarized.
func ValueToText(v Value) string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindBool:
		if v.Bool {
			return "yes"
		}
		return "no"
	case KindNull:
		return "none"
	case KindArray:
		return arrayToText(v.Arr)
	case KindObject:
		return ObjectToText(v.Obj, 0)
	}
	return ""
}

func arrayToText(items []Value) string {
	switch {
	case len(items) == 0:
		return "none"
	case len(items) == 1:
		return ValueToText(items[0])
	case allOfKind(items, KindString):
		parts := make([]string, len(items))
		for i, it := range items {
			parts[i] = it.Str
		}
		return strings.Join(parts, ", ")
	default:
		n := len(items)
		if n > complexListMax {
			n = complexListMax
		}
		parts := make([]string, 0, n)
		for _, it := range items[:n] {
			parts = append(parts, ValueToText(it))
		}
		return strings.Join(parts, "; ")
	}
}

// ObjectToText renders an object as humanized "Key: value" lines, indenting
// two spaces per nesting level. Empty nested containers are omitted.
func ObjectToText(members []Member, level int) string {
	if len(members) == 0 {
		return ""
	}

	indent := strings.Repeat("  ", level)
	var lines []string

	for _, m := range members {
		key := Humanize(m.Key)
		switch m.Value.Kind {
		case KindObject:
			if len(m.Value.Obj) == 0 {
				continue
			}
			if nested := ObjectToText(m.Value.Obj, level+1); nested != "" {
				lines = append(lines, fmt.Sprintf("%s%s:", indent, key), nested)
			}
		case KindArray:
			if len(m.Value.Arr) == 0 {
				continue
			}
			if listText := renderList(m.Value.Arr, key, level); listText != "" {
				lines = append(lines, listText)
			}
		default:
			if formatted := ValueToText(m.Value); formatted != "" {
				lines = append(lines, fmt.Sprintf("%s%s: %s", indent, key, formatted))
			}
		}
	}

	return strings.Join(lines, "\n")
}

func renderList(items []Value, name string, level int) string {
	indent := strings.Repeat("  ", level)
	lines := []string{fmt.Sprintf("%s%s:", indent, name)}

	if allSimple(items) {
		if len(items) <= simpleListMax {
			for _, it := range items {
				lines = append(lines, fmt.Sprintf("%s  - %s", indent, ValueToText(it)))
			}
		} else {
			preview := make([]string, listPreview)
			for i := range preview {
				preview[i] = ValueToText(items[i])
			}
			lines = append(lines, fmt.Sprintf("%s  - %s, and %d more items",
				indent, strings.Join(preview, ", "), len(items)-listPreview))
		}
		return strings.Join(lines, "\n")
	}

	shown := len(items)
	if shown > listPreview {
		shown = listPreview
	}
	for i, it := range items[:shown] {
		if it.Kind == KindObject {
			if itemText := ObjectToText(it.Obj, level+1); itemText != "" {
				lines = append(lines, fmt.Sprintf("%s  Item %d:", indent, i+1), itemText)
			}
		} else {
			lines = append(lines, fmt.Sprintf("%s  - %s", indent, ValueToText(it)))
		}
	}
	if len(items) > listPreview {
		lines = append(lines, fmt.Sprintf("%s  ... and %d more items", indent, len(items)-listPreview))
	}

	return strings.Join(lines, "\n")
}

func allOfKind(items []Value, k Kind) bool {
	for _, it := range items {
		if it.Kind != k {
			return false
		}
	}
	return true
}

func allSimple(items []Value) bool {
	for _, it := range items {
		if it.Kind == KindArray || it.Kind == KindObject || it.Kind == KindNull {
			return false
		}
	}
	return true
}

// Humanize turns snake_case keys into title-cased phrases ("brand_values"
// becomes "Brand Values").
func Humanize(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
