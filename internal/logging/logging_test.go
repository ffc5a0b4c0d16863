package logging_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/empirephoenix/hardened-lua/internal/config"
	"github.com/empirephoenix/hardened-lua/internal/logging"
)

func TestNew_ConsoleFormatBuildsLogger(t *testing.T) {
	logger, err := logging.New(config.LoggingConfig{Level: "info", Format: "console"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NoError(t, logger.Sync())
}

func TestNew_JSONFormatBuildsLogger(t *testing.T) {
	logger, err := logging.New(config.LoggingConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NoError(t, logger.Sync())
}

func TestNew_UnknownLevelErrors(t *testing.T) {
	_, err := logging.New(config.LoggingConfig{Level: "verbose", Format: "console"})
	require.Error(t, err)
}

func TestNew_UnknownFormatErrors(t *testing.T) {
	_, err := logging.New(config.LoggingConfig{Level: "info", Format: "xml"})
	require.Error(t, err)
}
