package app

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/testutil"
)

func TestDetectCapabilitiesFullSchema(t *testing.T) {
	caps := DetectCapabilities(testutil.NewDB(t))
	assert.Equal(t, Capabilities{SmartCollections: true, WalletNames: true, TradesRaw: true}, caps)
}

func TestDetectCapabilitiesCoreSchemaOnly(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Market{}, &model.SmartCollection{}))

	caps := DetectCapabilities(db)
	assert.False(t, caps.SmartCollections)
	assert.False(t, caps.WalletNames)
	assert.False(t, caps.TradesRaw)

	markets := marketRepo(repo.NewMarketRepo(db), caps)
	name, err := markets.GetWalletName(context.Background(), "0xabc")
	require.NoError(t, err)
	assert.Empty(t, name)

	require.NoError(t, markets.SaveTitle(context.Background(), "m1", "Rain?"))
	title, err := markets.GetTitle(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "Rain?", title)
}
