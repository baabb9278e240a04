package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitFile_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "aletheia.log")
	closer, err := InitFile(path, true)
	require.NoError(t, err)
	t.Cleanup(func() {
		Init(false)
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})

	assert.True(t, DebugEnabled())
	log.Debug().Str("plan_id", "p1").Msg("plan accepted")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"plan_id":"p1"`)
	assert.Contains(t, string(data), `"message":"plan accepted"`)
}
