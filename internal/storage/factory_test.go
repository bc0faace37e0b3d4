package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/storage/memory"
)

func TestNewStorageManager_DefaultsToMemory(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Backend = ""

	m, err := NewStorageManager(common.NewSilentLogger(), cfg)
	require.NoError(t, err)
	defer m.Close()

	assert.IsType(t, &memory.Manager{}, m)
	assert.NotNil(t, m.StockStore())
	assert.NotNil(t, m.ScheduleStore())
}

func TestNewStorageManager_UnknownBackend(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Storage.Backend = "gcs"

	_, err := NewStorageManager(common.NewSilentLogger(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage backend")
}
