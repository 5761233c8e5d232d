package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/marisol-bistro/marisol-pos-api/events"
	"github.com/marisol-bistro/marisol-pos-api/models"
)

var tableStatuses = map[string]bool{
	models.TableAvailable:  true,
	models.TableOccupied:   true,
	models.TableReserved:   true,
	models.TableCleaning:   true,
	models.TableOutOfOrder: true,
}

// reservationTransitions defines the legal successors of each reservation
// status. completed, cancelled and no_show are terminal.
var reservationTransitions = map[string][]string{
	models.ReservationBooked: {models.ReservationSeated, models.ReservationCancelled, models.ReservationNoShow},
	models.ReservationSeated: {models.ReservationCompleted, models.ReservationCancelled},
}

func isValidReservationTransition(from, to string) bool {
	for _, s := range reservationTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TableService owns table occupancy. Status transitions are driven by the
// order and reservation lifecycles; SetStatus exists only for manual
// overrides from the floor.
type TableService struct {
	db    *gorm.DB
	bus   *events.Bus
	audit *AuditService
}

// NewTableService wires the table state machine to the bus and audit trail.
func NewTableService(db *gorm.DB, bus *events.Bus, audit *AuditService) *TableService {
	return &TableService{db: db, bus: bus, audit: audit}
}

// Create adds a table. Duplicate table numbers are a conflict.
func (s *TableService) Create(tableNumber string, capacity int, section *string, actor Actor) (*models.Table, error) {
	if tableNumber == "" {
		return nil, &ValidationError{Message: "table_number is required"}
	}
	if capacity <= 0 {
		return nil, &ValidationError{Message: "capacity must be greater than zero"}
	}

	table := models.Table{
		TableNumber: tableNumber,
		Capacity:    capacity,
		Status:      models.TableAvailable,
		Section:     section,
	}
	if err := s.db.Create(&table).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, &ConflictError{Message: "a table with this number already exists"}
		}
		return nil, err
	}

	s.audit.Record(AuditEntry{
		TableName: table.TableName(),
		RecordID:  table.ID,
		Action:    "create",
		NewValues: &table,
		Actor:     actor,
	})
	return &table, nil
}

// List returns all tables, for client sync.
func (s *TableService) List() ([]models.Table, error) {
	var tables []models.Table
	if err := s.db.Order("table_number").Find(&tables).Error; err != nil {
		return nil, err
	}
	return tables, nil
}

// SetStatus is the manual override: it bypasses the order-driven state
// machine but still validates the target status.
func (s *TableService) SetStatus(tableID uint, status string, actor Actor) (*models.Table, error) {
	if !tableStatuses[status] {
		return nil, &ValidationError{Message: "invalid table status: " + status}
	}

	var table models.Table
	if err := s.db.First(&table, tableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{Resource: "table", ID: tableID}
		}
		return nil, err
	}

	old := table
	if err := s.db.Model(&table).Update("status", status).Error; err != nil {
		return nil, err
	}
	table.Status = status

	s.bus.Publish(events.TableStatusChanged, tablePayload(table.ID, status))
	s.audit.Record(AuditEntry{
		TableName: table.TableName(),
		RecordID:  table.ID,
		Action:    "status:" + status,
		OldValues: &old,
		NewValues: &table,
		Actor:     actor,
	})
	return &table, nil
}

// occupyInTx marks a table occupied inside the caller's transaction.
// Returns whether the status actually changed.
func (s *TableService) occupyInTx(tx *gorm.DB, tableID uint) (bool, error) {
	var table models.Table
	if err := tx.First(&table, tableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, &NotFoundError{Resource: "table", ID: tableID}
		}
		return false, err
	}
	if table.Status == models.TableOutOfOrder {
		return false, &ConflictError{Message: "table " + table.TableNumber + " is out of order"}
	}
	if table.Status == models.TableOccupied {
		return false, nil
	}
	return true, tx.Model(&table).Update("status", models.TableOccupied).Error
}

// freeIfUnreferencedInTx sets a table available only when no other
// non-terminal order and no active reservation still references it. The
// check and the write are one conditional UPDATE, so two terminal
// transitions racing on the same table cannot double-free it.
func (s *TableService) freeIfUnreferencedInTx(tx *gorm.DB, tableID, excludeOrderID uint) (bool, error) {
	res := tx.Exec(`
		UPDATE tables SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
		AND NOT EXISTS (
			SELECT 1 FROM orders
			WHERE orders.table_id = tables.id AND orders.id <> ? AND orders.status NOT IN (?, ?)
		)
		AND NOT EXISTS (
			SELECT 1 FROM reservations
			WHERE reservations.table_id = tables.id AND reservations.status IN (?, ?)
		)`,
		models.TableAvailable, time.Now(),
		tableID, models.TableOccupied,
		excludeOrderID, models.OrderCompleted, models.OrderCancelled,
		models.ReservationBooked, models.ReservationSeated,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// CreateReservation books a table and marks it reserved when currently
// available.
func (s *TableService) CreateReservation(tableID uint, customerName string, partySize int, reservedFor time.Time, actor Actor) (*models.Reservation, error) {
	if customerName == "" {
		return nil, &ValidationError{Message: "customer_name is required"}
	}
	if partySize <= 0 {
		return nil, &ValidationError{Message: "party_size must be greater than zero"}
	}

	var reservation models.Reservation
	var tableChanged bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var table models.Table
		if err := tx.First(&table, tableID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "table", ID: tableID}
			}
			return err
		}
		if table.Status == models.TableOutOfOrder {
			return &ConflictError{Message: "table " + table.TableNumber + " is out of order"}
		}

		reservation = models.Reservation{
			TableID:      tableID,
			CustomerName: customerName,
			PartySize:    partySize,
			ReservedFor:  reservedFor,
			Status:       models.ReservationBooked,
		}
		if err := tx.Create(&reservation).Error; err != nil {
			return err
		}

		if table.Status == models.TableAvailable {
			if err := tx.Model(&table).Update("status", models.TableReserved).Error; err != nil {
				return err
			}
			tableChanged = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.ReservationCreated, &reservation)
	if tableChanged {
		s.bus.Publish(events.TableStatusChanged, tablePayload(tableID, models.TableReserved))
	}
	s.audit.Record(AuditEntry{
		TableName: reservation.TableName(),
		RecordID:  reservation.ID,
		Action:    "create",
		NewValues: &reservation,
		Actor:     actor,
	})
	return &reservation, nil
}

// UpdateReservationStatus applies one reservation transition. Seating
// occupies the table; the terminal statuses re-check remaining references
// before freeing it, same as order completion does.
func (s *TableService) UpdateReservationStatus(reservationID uint, newStatus string, actor Actor) (*models.Reservation, error) {
	var reservation models.Reservation
	var pending []pendingEvent

	err := s.db.Transaction(func(tx *gorm.DB) error {
		pending = pending[:0]

		if err := tx.First(&reservation, reservationID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return &NotFoundError{Resource: "reservation", ID: reservationID}
			}
			return err
		}
		if !isValidReservationTransition(reservation.Status, newStatus) {
			return &InvalidTransitionError{Entity: "reservation", From: reservation.Status, To: newStatus}
		}

		if err := tx.Model(&reservation).Update("status", newStatus).Error; err != nil {
			return err
		}
		reservation.Status = newStatus

		switch newStatus {
		case models.ReservationSeated:
			changed, err := s.occupyInTx(tx, reservation.TableID)
			if err != nil {
				return err
			}
			if changed {
				pending = append(pending, pendingEvent{events.TableStatusChanged, tablePayload(reservation.TableID, models.TableOccupied)})
			}
		case models.ReservationCompleted, models.ReservationCancelled, models.ReservationNoShow:
			freed, err := s.freeIfUnreferencedInTx(tx, reservation.TableID, 0)
			if err != nil {
				return err
			}
			if !freed {
				// A booked reservation leaves the table reserved, not
				// occupied; release that claim the same conditional way.
				released, err := s.releaseReservedInTx(tx, reservation.TableID)
				if err != nil {
					return err
				}
				freed = released
			}
			if freed {
				pending = append(pending, pendingEvent{events.TableStatusChanged, tablePayload(reservation.TableID, models.TableAvailable)})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	publishAll(s.bus, pending)
	s.audit.Record(AuditEntry{
		TableName: reservation.TableName(),
		RecordID:  reservation.ID,
		Action:    "status:" + newStatus,
		NewValues: &reservation,
		Actor:     actor,
	})
	return &reservation, nil
}

// releaseReservedInTx frees a reserved (not occupied) table when no active
// reservation and no non-terminal order still references it.
func (s *TableService) releaseReservedInTx(tx *gorm.DB, tableID uint) (bool, error) {
	res := tx.Exec(`
		UPDATE tables SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
		AND NOT EXISTS (
			SELECT 1 FROM reservations
			WHERE reservations.table_id = tables.id AND reservations.status IN (?, ?)
		)
		AND NOT EXISTS (
			SELECT 1 FROM orders
			WHERE orders.table_id = tables.id AND orders.status NOT IN (?, ?)
		)`,
		models.TableAvailable, time.Now(),
		tableID, models.TableReserved,
		models.ReservationBooked, models.ReservationSeated,
		models.OrderCompleted, models.OrderCancelled,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// isUniqueViolation detects duplicate-key errors from both SQLite and
// PostgreSQL.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
