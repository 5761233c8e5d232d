package models

import "gorm.io/gorm"

// All returns every model in migration order. Schema creation is idempotent;
// AutoMigrate only adds what is missing.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Category{},
		&Product{},
		&Inventory{},
		&StockMovement{},
		&Table{},
		&Reservation{},
		&Order{},
		&OrderItem{},
		&OrderCounter{},
		&AuditLog{},
		&IntegrityReport{},
	}
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(All()...)
}
