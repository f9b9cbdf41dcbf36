package browser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	const u = "https://provider.example.com/authorize?state=x"

	cmd := command("darwin", u)
	require.Equal(t, []string{"open", u}, cmd.Args)

	cmd = command("linux", u)
	require.Equal(t, []string{"xdg-open", u}, cmd.Args)

	cmd = command("windows", u)
	require.Equal(t, u, cmd.Args[len(cmd.Args)-1])

	require.Nil(t, command("plan9", u))
}
