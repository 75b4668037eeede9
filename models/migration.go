package models

import (
	"github.com/graintrack/mill_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Mill{},
		&Party{}, &Vehicle{},
		&InwardEntry{}, &OutwardEntry{}, &PurchaseDeal{}, &SaleDeal{},
		&StockTransaction{}, &StockSummary{},
		&StockPostingRecord{},
	)
	if err != nil {
		logger := config.GetLogger()
		config.LogError(logger, "migration.go", "MigrateTable", "AutoMigrate", nil, err)
	}
}
