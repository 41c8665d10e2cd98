package speech

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandSynthesizerReadsTextFromStdin(t *testing.T) {
	cases := map[string]struct {
		path string
		lang string
		args []string
	}{
		"espeak with voice": {path: "/usr/bin/espeak-ng", lang: "fr", args: []string{"-v", "fr", "--stdin"}},
		"espeak no voice":   {path: "/usr/bin/espeak", args: []string{"--stdin"}},
		"say":               {path: "/usr/bin/say", lang: "fr", args: []string{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			s := &CommandSynthesizer{path: tc.path}
			cmd := s.command(context.Background(), "-x --help", tc.lang)

			assert.Equal(t, tc.args, cmd.Args[1:])
			assert.NotContains(t, cmd.Args, "-x --help")
			require.NotNil(t, cmd.Stdin)
			text, err := io.ReadAll(cmd.Stdin)
			require.NoError(t, err)
			assert.Equal(t, "-x --help", string(text))
		})
	}
}
