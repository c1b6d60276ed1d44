// Package testing provides test utilities, fixtures and database setup for the pricing service
package testing

import (
	"fmt"
	"os"
	stdtesting "testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/amirphl/faredown-pricing/migrations"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// IntegrationDSNEnv names the variable holding the Postgres DSN for integration tests
const IntegrationDSNEnv = "PRICING_TEST_DATABASE_DSN"

// pricingTables in truncation order
var pricingTables = []string{
	"pricing_audits",
	"promo_redemptions",
	"promo_codes",
	"markup_rules",
}

// NewMockDB opens a gorm handle backed by sqlmock. Writes outside a caller transaction
// still run inside Begin/Commit, so expectations must include them.
func NewMockDB() (*gorm.DB, sqlmock.Sqlmock, error) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open sqlmock: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to open gorm on sqlmock: %w", err)
	}
	return db, mock, nil
}

// IntegrationEnabled reports whether tests may reach a real PostgreSQL server
func IntegrationEnabled() bool {
	return os.Getenv(IntegrationDSNEnv) != ""
}

// OpenIntegrationDB connects to the database named by PRICING_TEST_DATABASE_DSN, applies the
// migrations and empties the pricing tables. The test is skipped when the variable is unset.
func OpenIntegrationDB(t stdtesting.TB) *gorm.DB {
	t.Helper()
	if !IntegrationEnabled() {
		t.Skipf("%s not set", IntegrationDSNEnv)
	}

	db, err := gorm.Open(postgres.Open(os.Getenv(IntegrationDSNEnv)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("connect to integration database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("integration database handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrations.Up(sqlDB); err != nil {
		t.Fatalf("migrate integration database: %v", err)
	}
	if err := TruncatePricingTables(db); err != nil {
		t.Fatal(err)
	}
	return db
}

// TruncatePricingTables removes all rows while keeping the schema
func TruncatePricingTables(db *gorm.DB) error {
	for _, table := range pricingTables {
		if err := db.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}
	return nil
}
