package config

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var DB *gorm.DB

// ConnectDatabase opens the database. SQLite is the default backend; when
// DATABASE_URL is set a PostgreSQL connection is used instead.
func ConnectDatabase(cfg *Config) error {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	var err error
	if cfg.UsesSQLite() {
		// Foreign keys are off by default in SQLite; the schema relies on them.
		dsn := fmt.Sprintf("%s?_foreign_keys=on", cfg.SQLitePath)
		DB, err = gorm.Open(sqlite.Open(dsn), gormCfg)
	} else {
		DB, err = gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
	}
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info().Bool("sqlite", cfg.UsesSQLite()).Msg("database connection established")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (primarily for testing)
func SetDB(db *gorm.DB) {
	DB = db
}
