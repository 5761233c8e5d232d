package models

import (
	"time"
)

// Table statuses
const (
	TableAvailable  = "available"
	TableOccupied   = "occupied"
	TableReserved   = "reserved"
	TableCleaning   = "cleaning"
	TableOutOfOrder = "out_of_order"
)

// Reservation statuses
const (
	ReservationBooked    = "booked"
	ReservationSeated    = "seated"
	ReservationCompleted = "completed"
	ReservationCancelled = "cancelled"
	ReservationNoShow    = "no_show"
)

// Table represents a physical table in the restaurant. Status changes are
// driven by order and reservation lifecycle events through the table
// service; the manual-override endpoint is the only direct write path.
type Table struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TableNumber string    `gorm:"uniqueIndex;not null" json:"table_number"`
	Capacity    int       `gorm:"not null;default:2" json:"capacity"`
	Status      string    `gorm:"not null;default:'available'" json:"status"`
	Section     *string   `json:"section,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Table model
func (Table) TableName() string {
	return "tables"
}

// Reservation represents a booking for a table
type Reservation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TableID      uint      `gorm:"index;not null" json:"table_id"`
	Table        *Table    `gorm:"foreignKey:TableID" json:"table,omitempty"`
	CustomerName string    `gorm:"not null" json:"customer_name"`
	PartySize    int       `gorm:"not null;default:1" json:"party_size"`
	ReservedFor  time.Time `gorm:"not null" json:"reserved_for"`
	Status       string    `gorm:"not null;default:'booked'" json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for the Reservation model
func (Reservation) TableName() string {
	return "reservations"
}

// IsActive reports whether the reservation still holds a claim on its table.
func (r *Reservation) IsActive() bool {
	return r.Status == ReservationBooked || r.Status == ReservationSeated
}
