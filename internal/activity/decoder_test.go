package activity

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRecords_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf, 0)
	require.NoError(t, l.WriteMarker())

	spawn := Record{
		Timestamp:   fixedTime,
		CommandLine: "SPAWN echo hi",
		PID:         7,
		ProcessName: "echo",
		Username:    "alice",
		Type:        TypeSpawn,
	}
	net := Record{
		Timestamp:   fixedTime,
		CommandLine: "NET 127.0.0.1:9001 127.0.0.1:9002 ping",
		PID:         7,
		ProcessName: "TELGEN",
		Username:    "alice",
		Type:        TypeNet,
		Fields: []Field{
			Quoted("source", "127.0.0.1:9001"),
			Quoted("destination", "127.0.0.1:9002"),
			Quoted("bytes-sent", "4"),
			Quoted("protocol", "UDP"),
		},
	}
	for _, rec := range []Record{spawn, fileRecord(), net} {
		_, err := l.Log(rec)
		require.NoError(t, err)
	}

	dec := NewDecoder(&buf)
	var got []Record
	for {
		rec, err := dec.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, rec)
	}

	require.Len(t, got, 3)
	assert.Equal(t, 1, dec.Runs())

	// IDs are not part of the text format.
	for i, want := range []Record{spawn, fileRecord(), net} {
		assert.Empty(t, got[i].ID)
		assert.True(t, want.Timestamp.Equal(got[i].Timestamp))
		got[i].Timestamp = want.Timestamp
		assert.Equal(t, want, got[i])
	}
}

func TestParseRecords_MultipleRuns(t *testing.T) {
	input := "---\n" + string(fileRecord().Format()) + "---\n---\n" + string(fileRecord().Format())

	dec := NewDecoder(strings.NewReader(input))
	n := 0
	for {
		_, err := dec.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, dec.Runs())
}

func TestParseRecords_CommandLineWithColons(t *testing.T) {
	rec := fileRecord()
	rec.CommandLine = `FILE MOD C:\x "a:b"`
	records, err := ParseRecords(bytes.NewReader(rec.Format()))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, rec.CommandLine, records[0].CommandLine)
}

func TestParseRecords_Errors(t *testing.T) {
	tests := map[string]string{
		"bad timestamp":  "timestamp:yesterday\n",
		"orphan field":   "  - pid:1\n",
		"bad pid":        "timestamp:Tue, 01 Jul 2003 10:52:37 +0000\n  - pid:abc\n",
		"unknown header": "timestamp:Tue, 01 Jul 2003 10:52:37 +0000\n  - color:\"red\"\n",
		"garbage":        "hello world\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRecords(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestAssembler_FlushCompletesRecord(t *testing.T) {
	var a Assembler
	for _, line := range strings.Split(strings.TrimSuffix(string(fileRecord().Format()), "\n"), "\n") {
		rec, err := a.Feed(line)
		require.NoError(t, err)
		assert.Nil(t, rec)
	}

	rec, ok := a.Flush()
	require.True(t, ok)
	assert.Equal(t, "FILE NEW /tmp/x", rec.CommandLine)

	_, ok = a.Flush()
	assert.False(t, ok)
}
