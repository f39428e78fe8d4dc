package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

// Capabilities optional tables found in the database; missing ones switch their feature off
type Capabilities struct {
	SmartCollections bool
	WalletNames      bool
	TradesRaw        bool
}

// DetectCapabilities checks the optional schema once at startup
func DetectCapabilities(db *gorm.DB) Capabilities {
	m := db.Migrator()
	caps := Capabilities{
		SmartCollections: m.HasTable(&model.SmartCollection{}) &&
			m.HasTable(&model.SmartCollectionSubscription{}) &&
			m.HasTable(&model.SmartCollectionWhale{}),
		WalletNames: m.HasTable(&model.WalletName{}),
		TradesRaw:   m.HasTable(&model.TradeRaw{}),
	}

	logger.Info("🧩 schema capabilities",
		logger.Bool("smart_collections", caps.SmartCollections),
		logger.Bool("wallet_names", caps.WalletNames),
		logger.Bool("trades_raw", caps.TradesRaw))
	return caps
}

// namelessMarkets markets without the wallet_names table
type namelessMarkets struct {
	repo.MarketRepo
}

func (namelessMarkets) GetWalletName(context.Context, string) (string, error) {
	return "", nil
}

// marketRepo wraps r so display names degrade to the short address when wallet_names is missing
func marketRepo(r repo.MarketRepo, caps Capabilities) repo.MarketRepo {
	if caps.WalletNames {
		return r
	}
	return namelessMarkets{r}
}
