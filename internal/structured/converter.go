package structured

import (
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"

	"askbase/internal/text"
)

const (
	// minChunkChars filters out subtrees whose rendered prose is too thin to
	// be worth an embedding of its own.
	minChunkChars = 50
	// separateObjectBytes decides when a nested object becomes its own chunk
	// instead of staying inline in the parent's prose.
	separateObjectBytes = 200
	// maxArrayItems bounds how many elements of an object array expand into
	// individual chunks.
	maxArrayItems = 5
	// overviewKeys caps how many member keys an overview line mentions.
	overviewKeys = 3
	overviewFields = 5
)

// Converter renders structured (JSON) documents into prose chunks: one chunk
// per substantial subtree tagged with its path and breadcrumb context, plus a
// flat overview chunk inserted first. Oversized chunks are re-split through
// the plain-text splitter so the global chunk-size bound holds everywhere.
type Converter struct {
	splitter text.Splitter
}

func NewConverter(splitter text.Splitter) Converter {
	return Converter{splitter: splitter}
}

// Convert parses content and produces chunks. A malformed or non-object
// document returns ErrDecode; callers fall back to plain-text chunking.
func (c Converter) Convert(content string, metadata map[string]any) ([]text.Chunk, error) {
	root, err := Decode(content)
	if err != nil {
		return nil, err
	}
	if root.Kind != KindObject {
		return nil, fmt.Errorf("%w: top-level value is not an object", ErrDecode)
	}

	meta := maps.Clone(metadata)
	if meta == nil {
		meta = map[string]any{}
	}
	meta["content_type"] = "json"
	meta["processor"] = "structured"

	chunks := c.structuralChunks(root.Obj, meta)

	if overview := Overview(root.Obj); overview != "" {
		overviewMeta := maps.Clone(meta)
		overviewMeta["chunk_type"] = "overview"
		chunks = append([]text.Chunk{{
			Text:     "Complete Overview:\n\n" + overview,
			Metadata: overviewMeta,
		}}, chunks...)
	}

	// Guarantee the chunk-size invariant regardless of how large a rendered
	// subtree came out.
	final := make([]text.Chunk, 0, len(chunks))
	for _, ch := range chunks {
		if utf8.RuneCountInString(ch.Text) > c.splitter.ChunkSize*2 {
			final = append(final, c.splitter.SplitDocuments(ch.Text, ch.Metadata)...)
		} else {
			final = append(final, ch)
		}
	}

	return final, nil
}

func (c Converter) structuralChunks(root []Member, meta map[string]any) []text.Chunk {
	var chunks []text.Chunk

	var process func(obj []Member, path, parentContext string)
	process = func(obj []Member, path, parentContext string) {
		objText := ObjectToText(obj, 0)
		if len(strings.TrimSpace(objText)) > minChunkChars {
			chunkMeta := maps.Clone(meta)
			chunkMeta["json_path"] = pathOrRoot(path)
			chunkMeta["context"] = parentContext
			chunkMeta["chunk_type"] = "json_object"

			fullText := objText
			if parentContext != "" {
				fullText = fmt.Sprintf("Context: %s\n\n%s", parentContext, objText)
			}
			chunks = append(chunks, text.Chunk{Text: fullText, Metadata: chunkMeta})
		}

		for _, m := range obj {
			currentPath := m.Key
			if path != "" {
				currentPath = path + "." + m.Key
			}
			sectionContext := Humanize(m.Key)
			if parentContext != "" {
				sectionContext = parentContext + " > " + Humanize(m.Key)
			}

			switch m.Value.Kind {
			case KindObject:
				if len(m.Value.Obj) > 0 && len(encode(m.Value)) > separateObjectBytes {
					process(m.Value.Obj, currentPath, sectionContext)
				}
			case KindArray:
				if len(m.Value.Arr) > 0 && allOfKind(m.Value.Arr, KindObject) {
					limit := len(m.Value.Arr)
					if limit > maxArrayItems {
						limit = maxArrayItems
					}
					for i, item := range m.Value.Arr[:limit] {
						itemContext := fmt.Sprintf("%s > Item %d", sectionContext, i+1)
						process(item.Obj, fmt.Sprintf("%s[%d]", currentPath, i), itemContext)
					}
				}
			}
		}
	}

	process(root, "", "Root")
	return chunks
}

func pathOrRoot(path string) string {
	if path == "" {
		return "root"
	}
	return path
}

// Overview summarizes the top-level shape of the document: member keys of
// nested objects, element counts of arrays, and literal values for
// name/title/description/summary fields.
func Overview(root []Member) string {
	var parts []string

	for _, m := range root {
		key := Humanize(m.Key)
		switch m.Value.Kind {
		case KindObject:
			keys := memberKeys(m.Value.Obj, overviewFields)
			if len(keys) == 0 {
				continue
			}
			summary := fmt.Sprintf("%s contains information about: %s", key, strings.Join(keys, ", "))
			if len(m.Value.Obj) > overviewFields {
				summary += fmt.Sprintf(" (and %d more fields)", len(m.Value.Obj)-overviewFields)
			}
			parts = append(parts, summary)
		case KindArray:
			if len(m.Value.Arr) == 0 {
				continue
			}
			itemType := "items"
			if first := m.Value.Arr[0]; first.Kind == KindObject {
				itemType = "entries with " + strings.Join(memberKeys(first.Obj, overviewKeys), ", ")
			}
			parts = append(parts, fmt.Sprintf("%s contains %d %s", key, len(m.Value.Arr), itemType))
		case KindString, KindNumber:
			switch strings.ToLower(m.Key) {
			case "name", "title", "description", "summary":
				parts = append(parts, fmt.Sprintf("%s: %s", key, ValueToText(m.Value)))
			}
		}
	}

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, ". ") + "."
}

func memberKeys(members []Member, limit int) []string {
	if len(members) < limit {
		limit = len(members)
	}
	keys := make([]string, 0, limit)
	for _, m := range members[:limit] {
		keys = append(keys, strings.ReplaceAll(m.Key, "_", " "))
	}
	return keys
}
