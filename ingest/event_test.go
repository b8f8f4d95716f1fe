package ingest

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.graphsync.dev/core/term"
)

func TestDecoderCases(t *testing.T) {
	var expect = term.Triple{
		Subject:   term.NewIRI("urn:ex:1"),
		Predicate: term.NewIRI("urn:ex:has"),
		Object:    term.NewLiteral(`"42"`),
	}

	var src, tr, err = Decoder{}.Decode(Notification{
		Channel: "events",
		Payload: bldg1Payload,
	})
	require.NoError(t, err)
	require.Equal(t, "bldg1", src)
	require.Equal(t, expect, tr)

	// Action is case-insensitive, and may be omitted.
	for _, action := range []string{"insert", "UPDATE", ""} {
		src, _, err = Decoder{}.Decode(Notification{Payload: `{"action":"` + action +
			`","data":{"source":"b","s":"<urn:ex:1>","p":"<urn:ex:has>","o":"\"42\""}}`})
		require.NoError(t, err)
		require.Equal(t, "b", src)
	}

	// A FixedSource overrides, and doesn't require, data.source.
	var fixed = Decoder{FixedSource: "site"}
	src, tr, err = fixed.Decode(Notification{Payload: bldg1Payload})
	require.NoError(t, err)
	require.Equal(t, "site", src)
	require.Equal(t, expect, tr)

	src, _, err = fixed.Decode(Notification{Payload: `{"table":"latest_triples","action":"INSERT",` +
		`"data":{"s":"<urn:ex:1>","p":"<urn:ex:has>","o":"\"42\""}}`})
	require.NoError(t, err)
	require.Equal(t, "site", src)
}

func TestDecoderErrors(t *testing.T) {
	for _, tc := range []struct {
		payload string
		cause   error
		expect  string
	}{
		{
			payload: `{"action": "INSERT", "data": `,
			cause:   ErrDecode,
			expect:  "unexpected end of JSON input: decoding notification",
		},
		{
			payload: `{"action":"INSERT","data":{"s":"<urn:ex:1>","p":"<urn:ex:has>","o":"\"42\""}}`,
			cause:   ErrDecode,
			expect:  "missing data.source: decoding notification",
		},
		{
			payload: `{"action":"DELETE","data":{"source":"a","s":"<urn:ex:1>","p":"<urn:ex:has>","o":"\"42\""}}`,
			cause:   ErrUnsupportedAction,
			expect:  `"DELETE": unsupported action`,
		},
		{
			payload: `{"action":"INSERT","data":{"source":"a","s":"<urn:ex:1>","p":"has","o":"\"42\""}}`,
			cause:   term.ErrMalformed,
			expect:  `predicate: unexpected leading 'h' of "has": malformed term`,
		},
		{
			payload: `{"action":"INSERT","data":{"source":"a","s":"<urn:ex:1>","p":"<urn:ex:has>"}}`,
			cause:   term.ErrMalformed,
			expect:  `object: empty term: malformed term`,
		},
	} {
		var _, _, err = Decoder{}.Decode(Notification{Payload: tc.payload})
		require.EqualError(t, err, tc.expect)
		require.True(t, errors.Is(err, tc.cause))
	}
}

const bldg1Payload = `{"table":"latest_triples","action":"INSERT",` +
	`"data":{"source":"bldg1","s":"<urn:ex:1>","p":"<urn:ex:has>","o":"\"42\""}}`
