package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jrsteele09/postsync/internal/logging"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSONOutsideDev(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	logging.Setup("PROD", "debug", &buf)
	log.Debug().Str("user_id", "u1").Msg("restored session")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "u1", line["user_id"])
	require.Equal(t, "restored session", line["message"])
}

func TestSetup_LevelFilters(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	logging.Setup("PROD", "warn", &buf)
	log.Info().Msg("hidden")
	require.Empty(t, buf.String())

	logging.Setup("PROD", "not-a-level", &buf)
	log.Info().Msg("shown")
	require.Contains(t, buf.String(), "shown")
}
