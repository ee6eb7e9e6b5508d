package jsonline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(p *Parser, chunks ...string) []Object {
	var all []Object
	for _, c := range chunks {
		all = append(all, p.Feed(c)...)
	}
	all = append(all, p.Flush()...)
	return all
}

func TestParser_SingleFeed(t *testing.T) {
	objs := collect(New(), "{\"a\":1}\n{\"b\":2}\n")

	require.Len(t, objs, 2)
	assert.Equal(t, float64(1), objs[0]["a"])
	assert.Equal(t, float64(2), objs[1]["b"])
}

func TestParser_RechunkInvariance(t *testing.T) {
	input := "{\"a\":1}\n{\"b\":2}\nplain prose line\n{\"c\":{\"nested\":true}}\n"

	// Every split point of the input must yield the same objects.
	whole := collect(New(), input)
	require.Len(t, whole, 3)

	for i := 0; i <= len(input); i++ {
		split := collect(New(), input[:i], input[i:])
		assert.Equal(t, whole, split, "split at byte %d diverged", i)
	}

	// Byte-at-a-time delivery.
	p := New()
	var objs []Object
	for _, b := range []byte(input) {
		objs = append(objs, p.Feed(string(b))...)
	}
	objs = append(objs, p.Flush()...)
	assert.Equal(t, whole, objs)
}

func TestParser_ProseAndMalformedLinesDropped(t *testing.T) {
	input := "Here is the plan:\n{\"action\":\"add_task\"}\n{broken json}\nnot json at all\n"
	objs := collect(New(), input)

	require.Len(t, objs, 1)
	assert.Equal(t, "add_task", objs[0]["action"])
}

func TestParser_FlushParsesTrailingObject(t *testing.T) {
	p := New()
	assert.Empty(t, p.Feed("{\"unterminated\":true}"))

	objs := p.Flush()
	require.Len(t, objs, 1)
	assert.Equal(t, true, objs[0]["unterminated"])
}

func TestParser_FlushEmptyBuffer(t *testing.T) {
	p := New()
	assert.Empty(t, p.Flush())

	// Flush after a complete line leaves nothing behind.
	p.Feed("{\"a\":1}\n")
	assert.Empty(t, p.Flush())
}

func TestParser_WhitespacePaddedLines(t *testing.T) {
	objs := collect(New(), "   {\"a\":1}   \n")
	require.Len(t, objs, 1)
	assert.Equal(t, float64(1), objs[0]["a"])
}

func TestParser_ObjectSpansChunks(t *testing.T) {
	objs := collect(New(), "{\"a\":1", "}\n{\"b\":2}\n")

	require.Len(t, objs, 2)
	assert.Equal(t, float64(1), objs[0]["a"])
	assert.Equal(t, float64(2), objs[1]["b"])
}
