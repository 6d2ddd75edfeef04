package extraction

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCandidates(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		want     int
		rejected int
		wantErr  bool
	}{
		{
			name:  "plain array",
			input: `[{"subject":"alice","predicate":"works_at","object":"acme","confidence":0.9}]`,
			want:  1,
		},
		{
			name: "fenced json",
			input: "```json\n" +
				`[{"subject":"alice","predicate":"likes","object":"jazz"}]` +
				"\n```",
			want: 1,
		},
		{
			name: "prose around the array",
			input: "Here are the extracted facts:\n" +
				`[{"subject":"a","predicate":"is_a","object":"b"}]` +
				"\nLet me know if you need more.",
			want: 1,
		},
		{
			name: "entries missing parts are skipped",
			input: `[
				{"subject":"","predicate":"is_a","object":"b"},
				{"subject":"a","predicate":"","object":"b"},
				{"subject":"a","predicate":"is_a","object":""},
				{"subject":"a","predicate":"is_a","object":"b"}
			]`,
			want:     1,
			rejected: 3,
		},
		{
			name:    "no array at all",
			input:   "I could not find any facts in that text.",
			wantErr: true,
		},
		{
			name:    "malformed json",
			input:   `[{"subject": "unterminated`,
			wantErr: true,
		},
		{
			name:  "empty array",
			input: `[]`,
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates, rejected, err := ParseCandidates(tt.input, 0.8)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, candidates, tt.want)
			require.Len(t, rejected, tt.rejected)
		})
	}
}

func TestParseCandidatesConfidenceDefault(t *testing.T) {
	input := `[
		{"subject":"a","predicate":"is_a","object":"b"},
		{"subject":"c","predicate":"is_a","object":"d","confidence":1.5},
		{"subject":"e","predicate":"is_a","object":"f","confidence":0.6}
	]`

	candidates, _, err := ParseCandidates(input, 0.8)
	require.NoError(t, err)
	require.Len(t, candidates, 3)
	require.Equal(t, 0.8, candidates[0].Confidence)
	require.Equal(t, 0.8, candidates[1].Confidence)
	require.Equal(t, 0.6, candidates[2].Confidence)
}
