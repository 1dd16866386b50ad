package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseArgv(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr string
	}{
		{name: "empty", input: "", want: nil},
		{name: "simple", input: "pw-play --media-role Phone", want: []string{"pw-play", "--media-role", "Phone"}},
		{name: "double quotes", input: `mpv --title "tandem speech"`, want: []string{"mpv", "--title", "tandem speech"}},
		{name: "single quotes keep backslash", input: `play 'a\b'`, want: []string{"play", `a\b`}},
		{name: "escaped space", input: `player my\ file`, want: []string{"player", "my file"}},
		{name: "empty quoted word", input: `player ""`, want: []string{"player", ""}},
		{name: "disabled", input: `# pw-play`, want: nil},
		{name: "unterminated quote", input: `player "oops`, wantErr: "unterminated quote"},
		{name: "unterminated escape", input: `player oops\`, wantErr: "unterminated escape"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseArgv(tc.input)
			if tc.wantErr != "" {
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMustParseArgvPanicsOnInvalidInput(t *testing.T) {
	require.Panics(t, func() {
		_ = mustParseArgv(`player "unterminated`)
	})
}
