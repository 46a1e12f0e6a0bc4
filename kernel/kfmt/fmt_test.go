package kfmt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrintf(t *testing.T) {
	var buf bytes.Buffer
	SetOutputSink(&buf)
	defer func() { outputSink = nil }()

	specs := []struct {
		name   string
		fn     func()
		expect string
	}{
		{"no args", func() { Printf("no args") }, "no args"},
		{"bool true", func() { Printf("%t", true) }, "true"},
		{"bool false padded", func() { Printf("%41t", false) }, "false"},
		{"string", func() { Printf("%s arg", "STRING") }, "STRING arg"},
		{"byte slice", func() { Printf("%s arg", []byte("BYTES")) }, "BYTES arg"},
		{"string padded shorter", func() { Printf("'%4s'", "ABC") }, "' ABC'"},
		{"string padded longer than width", func() { Printf("'%4s'", "ABCDE") }, "'ABCDE'"},
		{"uint base 10", func() { Printf("%d", uint8(10)) }, "10"},
		{"uint base 8", func() { Printf("%o", uint16(0777)) }, "777"},
		{"uint base 16", func() { Printf("%x", uint32(0xdead)) }, "dead"},
		{"negative int", func() { Printf("%d", int32(-42)) }, "-42"},
		{"negative int padded", func() { Printf("%5d", int64(-1)) }, "   -1"},
		{"literal percent", func() { Printf("100%%") }, "100%"},
		{"missing arg", func() { Printf("%d") }, "(MISSING)"},
		{"extra arg", func() { Printf("no verbs", 1) }, "no verbs%!(EXTRA)"},
		{"wrong type", func() { Printf("%d", "not a number") }, "%!(WRONGTYPE)"},
		{"no verb", func() { Printf("%") }, "%!(NOVERB)"},
	}

	for _, spec := range specs {
		t.Run(spec.name, func(t *testing.T) {
			buf.Reset()
			spec.fn()
			require.Equal(t, spec.expect, buf.String())
		})
	}
}

func TestPrintfBuffersToRingWhenNoSink(t *testing.T) {
	outputSink = nil
	earlyPrintBuffer = ringBuffer{}

	Printf("buffered %d", 1)

	var out bytes.Buffer
	SetOutputSink(&out)
	require.Equal(t, "buffered 1", out.String())

	outputSink = nil
}
