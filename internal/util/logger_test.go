package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger("production"))
	defer SyncLogger()

	l := GetLogger()
	require.NotNil(t, l)
	assert.Equal(t, "storefront", l.Name())
	assert.Same(t, l, zap.L())
}

func TestGetLoggerBeforeInit(t *testing.T) {
	prev := logger
	logger = nil
	defer func() { logger = prev }()

	l := GetLogger()
	require.NotNil(t, l)
	assert.Equal(t, "storefront", l.Name())
}
