package records

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Record keys are matched exactly. encoding/json folds case when binding
// struct fields, so entries are decoded as raw objects and picked by key.
const (
	keyLocation = "location"
	keyPage     = "page"
	keyTitle    = "title"
	keyCategory = "category"
	keyText     = "text"
	keyDocs     = "docs"
)

type rawRecord map[string]json.RawMessage

// Decode reads r fully and parses it with Parse.
func Decode(r io.Reader) ([]DocumentRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading record stream: %w", err)
	}
	return Parse(data)
}

// Parse accepts three shapes: a JSON array of records, an object with a
// "docs" array, or the Documenter search_index.js script
// (`var documenterSearchIndex = {"docs": [...]}`), including the trailing
// commas and JavaScript string escapes Documenter emits. Syntax problems are
// returned as *DecodeError; callers wrap them in a LoadError naming their
// source. Record validation failures are returned as *MalformedRecordError.
func Parse(data []byte) ([]DocumentRecord, error) {
	raws, err := decodeEntries(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	recs := make([]DocumentRecord, len(raws))
	for i, raw := range raws {
		rec, err := raw.record(i)
		if err != nil {
			return nil, err
		}
		recs[i] = rec
	}
	if err := Validate(recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func decodeEntries(data []byte) ([]rawRecord, error) {
	payload, err := unwrapScript(data)
	if err != nil {
		return nil, err
	}
	payload = normalizeScript(payload)

	var raws []rawRecord
	switch payload[0] {
	case '[':
		if err := json.Unmarshal(payload, &raws); err != nil {
			return nil, fmt.Errorf("decoding record array: %w", err)
		}
	case '{':
		var top map[string]json.RawMessage
		if err := json.Unmarshal(payload, &top); err != nil {
			return nil, fmt.Errorf("decoding search index: %w", err)
		}
		docs, ok := top[keyDocs]
		if !ok {
			return nil, errors.New(`search index has no "docs" array`)
		}
		if err := json.Unmarshal(docs, &raws); err != nil {
			return nil, fmt.Errorf("decoding docs array: %w", err)
		}
	default:
		return nil, fmt.Errorf("unexpected leading character %q", payload[0])
	}
	return raws, nil
}

func (raw rawRecord) record(i int) (DocumentRecord, error) {
	var rec DocumentRecord
	var category string
	fields := []struct {
		key string
		dst *string
	}{
		{keyLocation, &rec.Location},
		{keyPage, &rec.Page},
		{keyTitle, &rec.Title},
		{keyCategory, &category},
		{keyText, &rec.Text},
	}
	for _, f := range fields {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, f.dst); err != nil {
			return DocumentRecord{}, &MalformedRecordError{Index: i, Field: f.key, Reason: "must be a string"}
		}
	}
	rec.Category = Category(category)
	return rec, nil
}

// unwrapScript strips a leading `var name =` assignment and a trailing
// semicolon, returning the JSON payload.
func unwrapScript(data []byte) ([]byte, error) {
	payload := bytes.TrimSpace(data)
	if len(payload) == 0 {
		return nil, errors.New("empty record source")
	}
	if payload[0] != '[' && payload[0] != '{' {
		eq := bytes.IndexByte(payload, '=')
		if eq < 0 {
			return nil, errors.New("record source is neither JSON nor a search_index script")
		}
		payload = bytes.TrimSpace(payload[eq+1:])
	}
	payload = bytes.TrimSpace(bytes.TrimSuffix(payload, []byte(";")))
	if len(payload) == 0 {
		return nil, errors.New("search_index script has no payload")
	}
	return payload, nil
}

// normalizeScript turns a JavaScript object literal into JSON. Outside string
// literals it drops commas that directly precede a closing bracket or brace.
// Inside them it rewrites escapes JSON lacks: \' and any other non-JSON
// escape become the bare character, \v, \0 and \xHH become \u escapes, and
// line continuations are removed.
func normalizeScript(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString := false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			switch c {
			case '"':
				inString = false
				out = append(out, c)
			case '\\':
				if i+1 >= len(data) {
					out = append(out, c)
					continue
				}
				n, consumed := rewriteEscape(data[i+1:])
				out = append(out, n...)
				i += consumed
			default:
				out = append(out, c)
			}
			continue
		}
		if c == '"' {
			inString = true
			out = append(out, c)
			continue
		}
		if c == ',' {
			j := i + 1
			for j < len(data) && isJSONSpace(data[j]) {
				j++
			}
			if j < len(data) && (data[j] == ']' || data[j] == '}') {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

// rewriteEscape converts the escape whose body starts at rest[0] (the byte
// after the backslash). It returns the JSON text to emit and how many bytes
// of rest it used.
func rewriteEscape(rest []byte) ([]byte, int) {
	c := rest[0]
	switch c {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't', 'u':
		return []byte{'\\', c}, 1
	case 'v':
		return []byte(`\u000b`), 1
	case '0':
		if len(rest) < 2 || rest[1] < '0' || rest[1] > '9' {
			return []byte(`\u0000`), 1
		}
	case 'x':
		if len(rest) >= 3 && isHex(rest[1]) && isHex(rest[2]) {
			return []byte(`\u00` + string(rest[1:3])), 3
		}
	case '\n':
		return nil, 1
	case '\r':
		if len(rest) >= 2 && rest[1] == '\n' {
			return nil, 2
		}
		return nil, 1
	}
	if c < 0x20 {
		return []byte(fmt.Sprintf(`\u%04x`, c)), 1
	}
	return []byte{c}, 1
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isJSONSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
