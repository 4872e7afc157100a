package postgres

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/depotfleet/sigec-fleet/internal/domain"
)

// NewConnection initializes a new PostgreSQL connection using GORM
func NewConnection(url string, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(url), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info), // Adjust log level as needed
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	// Set connection pool settings
	// These could be configurable
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)

	log.Info("Successfully connected to PostgreSQL")
	return db, nil
}

// RunMigrations AutoMigrates every table the store owns: routes, vehicles,
// chargers, as-of telemetry, forecast/price series, site capacity, and the
// allocation/schedule header and row tables.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Route{},
		&domain.Vehicle{},
		&domain.Charger{},
		&vehicleTelemetryRow{},
		&forecastRow{},
		&priceRow{},
		&siteCapacityRow{},
		&domain.AllocationMonitor{},
		&domain.RouteAllocation{},
		&domain.Scheduler{},
		&scheduleRowModel{},
	)
}

// Helper to close connection if needed (though *gorm.DB doesn't have Close directly, sql.DB does)
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
