package output

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySink_RecordsInOrder(t *testing.T) {
	sink := NewMemorySink()
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, Record{SegmentID: 1, SourceText: "hello"}))
	require.NoError(t, sink.Write(ctx, Record{SegmentID: 2, SourceText: "world"}))

	records := sink.Records()
	require.Len(t, records, 2)
	assert.Equal(t, "hello", records[0].SourceText)
	assert.Equal(t, "world", records[1].SourceText)
}

func TestMemorySink_CloseMarksClosed(t *testing.T) {
	sink := NewMemorySink()
	require.NoError(t, sink.Close())
	assert.True(t, sink.Closed())
}

func TestJSONLSink_WritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSONLSink(&buf)
	ctx := context.Background()

	require.NoError(t, sink.Write(ctx, Record{SegmentID: 1, SourceText: "a"}))
	require.NoError(t, sink.Write(ctx, Record{SegmentID: 2, SourceText: "b"}))

	scanner := bufio.NewScanner(&buf)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 2)

	var r1 Record
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &r1))
	assert.Equal(t, "a", r1.SourceText)
}
