// Package jsonline decodes structured objects from an arbitrarily-chunked
// text stream. Model output interleaves prose with JSON Lines; the parser is
// intentionally forgiving — lines that don't parse are dropped, never
// escalated. For any way of partitioning the same input into Feed calls, the
// set of parsed objects is identical.
package jsonline

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tidwall/gjson"
)

// Object is one successfully parsed JSON object from the stream.
type Object map[string]any

// Parser accumulates chunked text and yields complete JSON objects line by
// line. Not safe for concurrent use: it has exactly one logical writer, the
// text stream being parsed.
type Parser struct {
	buf strings.Builder
}

// New creates an empty Parser.
func New() *Parser {
	return &Parser{}
}

// Feed appends a chunk and returns the objects completed by it. The last
// segment after the final newline stays buffered for the next call.
func (p *Parser) Feed(chunk string) []Object {
	p.buf.WriteString(chunk)

	text := p.buf.String()
	idx := strings.LastIndexByte(text, '\n')
	if idx < 0 {
		return nil
	}

	complete, rest := text[:idx], text[idx+1:]
	p.buf.Reset()
	p.buf.WriteString(rest)

	var objects []Object
	for _, line := range strings.Split(complete, "\n") {
		if obj, ok := parseLine(line); ok {
			objects = append(objects, obj)
		}
	}
	return objects
}

// Flush force-parses whatever is buffered at end of stream.
func (p *Parser) Flush() []Object {
	line := p.buf.String()
	p.buf.Reset()

	if obj, ok := parseLine(line); ok {
		return []Object{obj}
	}
	return nil
}

// parseLine attempts to decode one trimmed line as a JSON object. Anything
// that doesn't look like an object, or fails to decode, is discarded.
func parseLine(line string) (Object, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, false
	}
	if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
		return nil, false
	}
	if !gjson.Valid(line) {
		slog.Debug("Dropping malformed JSON line", "length", len(line))
		return nil, false
	}

	var obj Object
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		slog.Debug("Dropping undecodable JSON line", "error", err)
		return nil, false
	}
	return obj, true
}
