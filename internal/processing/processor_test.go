package processing_test

import (
	"testing"

	"github.com/govtrack/backend/internal/processing"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "empty", input: "", want: ""},
		{name: "only whitespace", input: " \n\t ", want: ""},
		{name: "collapse whitespace", input: "foo\n\nbar\t baz", want: "foo bar baz"},
		{name: "trim ends", input: "  Job A  ", want: "Job A"},
		{name: "keeps punctuation", input: "Apply now!!  <b>today</b>", want: "Apply now!! <b>today</b>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := processing.Normalize(tt.input); got != tt.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDigestIsSHA256Hex(t *testing.T) {
	require.Len(t, processing.Digest("Job A"), 64)
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", processing.Digest(""))
}

func TestFingerprintIgnoresIncidentalWhitespace(t *testing.T) {
	a := processing.Fingerprint("Job A\n")
	b := processing.Fingerprint("  Job   A")
	require.Equal(t, a, b)
	require.Equal(t, processing.Digest("Job A"), a)

	require.NotEqual(t, a, processing.Fingerprint("Job B"))
}
