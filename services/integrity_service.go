package services

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/marisol-bistro/marisol-pos-api/models"
)

// Check outcomes, ordered by severity.
const (
	CheckPass  = "PASS"
	CheckWarn  = "WARN"
	CheckFail  = "FAIL"
	CheckError = "ERROR"
)

var severity = map[string]int{CheckPass: 0, CheckWarn: 1, CheckFail: 2, CheckError: 3}

// CheckResult is the outcome of one integrity check.
type CheckResult struct {
	Family string `json:"family"`
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// IntegrityService runs the scheduled consistency checks: orphaned records,
// stock-vs-ledger reconciliation, duplicates and referential integrity.
// It detects and reports; it never remediates, since auto-correction could
// mask a real bug.
type IntegrityService struct {
	db    *gorm.DB
	audit *AuditService
}

// NewIntegrityService wires the checker to the store and audit trail.
func NewIntegrityService(db *gorm.DB, audit *AuditService) *IntegrityService {
	return &IntegrityService{db: db, audit: audit}
}

// RunChecks executes all check families, persists the aggregated report and
// audit-logs the run.
func (s *IntegrityService) RunChecks() (*models.IntegrityReport, error) {
	results := []CheckResult{}
	results = append(results, s.checkOrphans()...)
	results = append(results, s.checkStockReconciliation()...)
	results = append(results, s.checkDuplicates()...)
	results = append(results, s.checkReferences()...)

	overall := CheckPass
	for _, r := range results {
		if severity[r.Status] > severity[overall] {
			overall = r.Status
		}
	}

	summary, err := json.Marshal(results)
	if err != nil {
		return nil, err
	}
	report := models.IntegrityReport{
		RanAt:   time.Now().UTC(),
		Status:  overall,
		Summary: string(summary),
	}
	if err := s.db.Create(&report).Error; err != nil {
		return nil, err
	}

	log.Info().Str("status", overall).Int("checks", len(results)).Msg("integrity checks completed")
	s.audit.Record(AuditEntry{
		TableName: report.TableName(),
		RecordID:  report.ID,
		Action:    "integrity_check",
		NewValues: results,
		Actor:     SystemActor,
	})
	return &report, nil
}

// countCheck runs one counting query; zero is a pass, anything else is the
// given failure status.
func (s *IntegrityService) countCheck(family, name, failStatus, query string, args ...interface{}) CheckResult {
	var count int64
	if err := s.db.Raw(query, args...).Scan(&count).Error; err != nil {
		return CheckResult{Family: family, Name: name, Status: CheckError, Detail: err.Error()}
	}
	if count == 0 {
		return CheckResult{Family: family, Name: name, Status: CheckPass}
	}
	return CheckResult{Family: family, Name: name, Status: failStatus, Detail: fmt.Sprintf("%d offending rows", count)}
}

func (s *IntegrityService) checkOrphans() []CheckResult {
	return []CheckResult{
		s.countCheck("orphaned_records", "order_items_without_order", CheckFail,
			"SELECT COUNT(*) FROM order_items oi LEFT JOIN orders o ON o.id = oi.order_id WHERE o.id IS NULL"),
		s.countCheck("orphaned_records", "order_items_without_product", CheckFail,
			"SELECT COUNT(*) FROM order_items oi LEFT JOIN products p ON p.id = oi.product_id WHERE p.id IS NULL"),
		s.countCheck("orphaned_records", "inventories_without_product", CheckWarn,
			"SELECT COUNT(*) FROM inventories i LEFT JOIN products p ON p.id = i.product_id WHERE p.id IS NULL"),
		s.countCheck("orphaned_records", "movements_without_product", CheckWarn,
			"SELECT COUNT(*) FROM stock_movements m LEFT JOIN products p ON p.id = m.product_id WHERE p.id IS NULL"),
	}
}

// checkStockReconciliation folds each product's signed movements and
// compares the sum with the current balance. The initial balance is itself
// a movement, so the two must match exactly.
func (s *IntegrityService) checkStockReconciliation() []CheckResult {
	type row struct {
		ProductID    uint
		CurrentStock int
		LedgerSum    int
	}
	var rows []row
	err := s.db.Raw(`
		SELECT i.product_id AS product_id, i.current_stock AS current_stock,
			COALESCE(SUM(CASE WHEN m.movement_type = 'in' THEN m.quantity ELSE -m.quantity END), 0) AS ledger_sum
		FROM inventories i
		LEFT JOIN stock_movements m ON m.product_id = i.product_id
		GROUP BY i.product_id, i.current_stock`).Scan(&rows).Error
	if err != nil {
		return []CheckResult{{Family: "stock_reconciliation", Name: "ledger_vs_balance", Status: CheckError, Detail: err.Error()}}
	}

	mismatches := 0
	detail := ""
	for _, r := range rows {
		if r.CurrentStock != r.LedgerSum {
			mismatches++
			if mismatches == 1 {
				detail = fmt.Sprintf("first mismatch: product %d balance %d vs ledger %d", r.ProductID, r.CurrentStock, r.LedgerSum)
			}
		}
	}
	if mismatches == 0 {
		return []CheckResult{{Family: "stock_reconciliation", Name: "ledger_vs_balance", Status: CheckPass}}
	}
	return []CheckResult{{
		Family: "stock_reconciliation",
		Name:   "ledger_vs_balance",
		Status: CheckFail,
		Detail: fmt.Sprintf("%d products out of balance; %s", mismatches, detail),
	}}
}

func (s *IntegrityService) checkDuplicates() []CheckResult {
	return []CheckResult{
		s.countCheck("duplicate_records", "duplicate_order_numbers", CheckFail,
			"SELECT COUNT(*) FROM (SELECT order_number FROM orders GROUP BY order_number HAVING COUNT(*) > 1) d"),
		s.countCheck("duplicate_records", "duplicate_table_numbers", CheckFail,
			"SELECT COUNT(*) FROM (SELECT table_number FROM tables GROUP BY table_number HAVING COUNT(*) > 1) d"),
		s.countCheck("duplicate_records", "duplicate_product_skus", CheckWarn,
			"SELECT COUNT(*) FROM (SELECT sku FROM products WHERE deleted_at IS NULL GROUP BY sku HAVING COUNT(*) > 1) d"),
		s.countCheck("duplicate_records", "duplicate_inventory_rows", CheckFail,
			"SELECT COUNT(*) FROM (SELECT product_id FROM inventories GROUP BY product_id HAVING COUNT(*) > 1) d"),
	}
}

func (s *IntegrityService) checkReferences() []CheckResult {
	return []CheckResult{
		s.countCheck("referential_integrity", "orders_with_missing_table", CheckFail,
			"SELECT COUNT(*) FROM orders o LEFT JOIN tables t ON t.id = o.table_id WHERE o.table_id IS NOT NULL AND t.id IS NULL"),
		s.countCheck("referential_integrity", "reservations_with_missing_table", CheckFail,
			"SELECT COUNT(*) FROM reservations r LEFT JOIN tables t ON t.id = r.table_id WHERE t.id IS NULL"),
		s.countCheck("referential_integrity", "trackable_products_without_inventory", CheckWarn,
			"SELECT COUNT(*) FROM products p LEFT JOIN inventories i ON i.product_id = p.id WHERE p.is_trackable = ? AND p.deleted_at IS NULL AND i.id IS NULL", true),
	}
}
