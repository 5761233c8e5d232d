package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/marisol-bistro/marisol-pos-api/events"
	"github.com/marisol-bistro/marisol-pos-api/models"
)

func TestCreateTable(t *testing.T) {
	env := newTestEnv(t)

	table, err := env.tables.Create("T1", 4, nil, SystemActor)
	assert.NoError(t, err)
	assert.Equal(t, models.TableAvailable, table.Status)

	// Duplicate numbers are a conflict, not a database error.
	_, err = env.tables.Create("T1", 2, nil, SystemActor)
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)

	tests := []struct {
		name     string
		number   string
		capacity int
	}{
		{"empty number", "", 4},
		{"zero capacity", "T2", 0},
		{"negative capacity", "T3", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.tables.Create(tt.number, tt.capacity, nil, SystemActor)
			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestSetStatus_ManualOverride(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, "T1")

	changed := capture(env.bus, events.TableStatusChanged)

	updated, err := env.tables.SetStatus(table.ID, models.TableCleaning, SystemActor)
	assert.NoError(t, err)
	assert.Equal(t, models.TableCleaning, updated.Status)
	assert.Len(t, *changed, 1)

	_, err = env.tables.SetStatus(table.ID, "flooded", SystemActor)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = env.tables.SetStatus(999, models.TableAvailable, SystemActor)
	var notFoundErr *NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)
}

// A table stays occupied while any of its orders is still active. Only the
// last order reaching a terminal status frees it.
func TestTableFreedOnlyWhenLastOrderCompletes(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "pizza", 10.00, false, 0)
	table := env.seedTable(t, "T5")

	makeOrder := func() *models.Order {
		order, err := env.orders.CreateOrder(CreateOrderInput{
			TableID:   &table.ID,
			OrderType: models.OrderDineIn,
			Items:     []OrderLineInput{{ProductID: product.ID, Quantity: 1}},
		}, SystemActor)
		assert.NoError(t, err)
		return order
	}
	complete := func(orderID uint) {
		for _, status := range []string{
			models.OrderConfirmed, models.OrderPreparing, models.OrderReady,
			models.OrderServed, models.OrderCompleted,
		} {
			_, err := env.orders.UpdateStatus(orderID, status, nil, SystemActor)
			assert.NoError(t, err)
		}
	}
	tableStatus := func() string {
		var tbl models.Table
		env.db.First(&tbl, table.ID)
		return tbl.Status
	}

	first := makeOrder()
	second := makeOrder()
	assert.Equal(t, models.TableOccupied, tableStatus())

	complete(first.ID)
	assert.Equal(t, models.TableOccupied, tableStatus(), "second order still active")

	complete(second.ID)
	assert.Equal(t, models.TableAvailable, tableStatus())
}

func TestActiveReservationBlocksTableFree(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "fish", 14.00, false, 0)
	table := env.seedTable(t, "T9")

	order, err := env.orders.CreateOrder(CreateOrderInput{
		TableID:   &table.ID,
		OrderType: models.OrderDineIn,
		Items:     []OrderLineInput{{ProductID: product.ID, Quantity: 1}},
	}, SystemActor)
	assert.NoError(t, err)

	// An upcoming booking holds the table even after the order closes.
	_, err = env.tables.CreateReservation(table.ID, "Rivera", 2, time.Now().Add(2*time.Hour), SystemActor)
	assert.NoError(t, err)

	for _, status := range []string{
		models.OrderConfirmed, models.OrderPreparing, models.OrderReady,
		models.OrderServed, models.OrderCompleted,
	} {
		_, err := env.orders.UpdateStatus(order.ID, status, nil, SystemActor)
		assert.NoError(t, err)
	}

	var tbl models.Table
	env.db.First(&tbl, table.ID)
	assert.Equal(t, models.TableOccupied, tbl.Status, "active reservation blocks the free")
}

func TestCreateReservation(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, "T2")

	created := capture(env.bus, events.ReservationCreated)

	reservation, err := env.tables.CreateReservation(table.ID, "Okafor", 4, time.Now().Add(time.Hour), SystemActor)
	assert.NoError(t, err)
	assert.Equal(t, models.ReservationBooked, reservation.Status)
	assert.Len(t, *created, 1)

	// An available table is claimed as reserved when booked.
	var tbl models.Table
	env.db.First(&tbl, table.ID)
	assert.Equal(t, models.TableReserved, tbl.Status)

	_, err = env.tables.CreateReservation(table.ID, "", 4, time.Now(), SystemActor)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = env.tables.CreateReservation(999, "Okafor", 4, time.Now(), SystemActor)
	var notFoundErr *NotFoundError
	assert.ErrorAs(t, err, &notFoundErr)
}

func TestReservationLifecycle_SeatedThenCompleted(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, "T3")

	reservation, err := env.tables.CreateReservation(table.ID, "Janssen", 2, time.Now().Add(time.Hour), SystemActor)
	assert.NoError(t, err)

	// Seating occupies the table.
	seated, err := env.tables.UpdateReservationStatus(reservation.ID, models.ReservationSeated, SystemActor)
	assert.NoError(t, err)
	assert.Equal(t, models.ReservationSeated, seated.Status)

	var tbl models.Table
	env.db.First(&tbl, table.ID)
	assert.Equal(t, models.TableOccupied, tbl.Status)

	// Completing frees it again.
	_, err = env.tables.UpdateReservationStatus(reservation.ID, models.ReservationCompleted, SystemActor)
	assert.NoError(t, err)

	env.db.First(&tbl, table.ID)
	assert.Equal(t, models.TableAvailable, tbl.Status)
}

func TestReservationCancelled_ReleasesReservedTable(t *testing.T) {
	env := newTestEnv(t)
	table := env.seedTable(t, "T4")

	reservation, err := env.tables.CreateReservation(table.ID, "Moreau", 6, time.Now().Add(time.Hour), SystemActor)
	assert.NoError(t, err)

	_, err = env.tables.UpdateReservationStatus(reservation.ID, models.ReservationCancelled, SystemActor)
	assert.NoError(t, err)

	var tbl models.Table
	env.db.First(&tbl, table.ID)
	assert.Equal(t, models.TableAvailable, tbl.Status)
}

func TestReservationTransitions(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		via  []string
		to   string
		ok   bool
	}{
		{"booked to seated", nil, models.ReservationSeated, true},
		{"booked to no_show", nil, models.ReservationNoShow, true},
		{"booked to completed skips seating", nil, models.ReservationCompleted, false},
		{"seated to completed", []string{models.ReservationSeated}, models.ReservationCompleted, true},
		{"seated back to booked", []string{models.ReservationSeated}, models.ReservationBooked, false},
		{"cancelled is terminal", []string{models.ReservationCancelled}, models.ReservationSeated, false},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := env.seedTable(t, "R"+string(rune('A'+i)))
			reservation, err := env.tables.CreateReservation(table.ID, "Guest", 2, time.Now().Add(time.Hour), SystemActor)
			assert.NoError(t, err)

			for _, via := range tt.via {
				_, err := env.tables.UpdateReservationStatus(reservation.ID, via, SystemActor)
				assert.NoError(t, err)
			}

			_, err = env.tables.UpdateReservationStatus(reservation.ID, tt.to, SystemActor)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				var transitionErr *InvalidTransitionError
				assert.ErrorAs(t, err, &transitionErr)
			}
		})
	}
}

func TestDineInRejectedOnOutOfOrderTable(t *testing.T) {
	env := newTestEnv(t)
	product := env.seedProduct(t, "curry", 12.00, false, 0)
	table := env.seedTable(t, "T6")

	_, err := env.tables.SetStatus(table.ID, models.TableOutOfOrder, SystemActor)
	assert.NoError(t, err)

	_, err = env.orders.CreateOrder(CreateOrderInput{
		TableID:   &table.ID,
		OrderType: models.OrderDineIn,
		Items:     []OrderLineInput{{ProductID: product.ID, Quantity: 1}},
	}, SystemActor)
	var conflictErr *ConflictError
	assert.ErrorAs(t, err, &conflictErr)
}
