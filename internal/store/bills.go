package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const billColumns = `b.id, b.student_id, s.reg_num, s.name, b.period, b.amount, b.present_days, b.non_veg_days,
b.daily_rate, b.nv_plate_rate, b.room_rent, b.water_charges, b.electricity_charges, b.establishment_charges,
b.is_paid, b.generated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.StudentID, &b.RegNum, &b.StudentName, &b.Period, &b.Amount, &b.PresentDays, &b.NonVegDays,
		&b.DailyRate, &b.NonVegRate, &b.RoomRent, &b.WaterCharges, &b.ElectricityCharges, &b.EstablishmentCharges,
		&b.IsPaid, &b.GeneratedAt)
	return b, err
}

// UpsertBill writes the (student, period) bill in one statement. Amount, counts and the rate
// snapshot are replaced on conflict; is_paid is never touched. created reports whether the
// row was inserted by this call.
func (s *Store) UpsertBill(ctx context.Context, arg BillUpsert) (id uuid.UUID, created bool, err error) {
	if err := s.ready(); err != nil {
		return uuid.Nil, false, err
	}
	r := arg.Rates
	err = s.db.QueryRow(ctx, `INSERT INTO bills (student_id, period, amount, present_days, non_veg_days,
    daily_rate, nv_plate_rate, room_rent, water_charges, electricity_charges, establishment_charges, generated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (student_id, period) DO UPDATE SET
    amount = EXCLUDED.amount,
    present_days = EXCLUDED.present_days,
    non_veg_days = EXCLUDED.non_veg_days,
    daily_rate = EXCLUDED.daily_rate,
    nv_plate_rate = EXCLUDED.nv_plate_rate,
    room_rent = EXCLUDED.room_rent,
    water_charges = EXCLUDED.water_charges,
    electricity_charges = EXCLUDED.electricity_charges,
    establishment_charges = EXCLUDED.establishment_charges,
    generated_at = EXCLUDED.generated_at
RETURNING id, (xmax = 0) AS inserted`,
		arg.StudentID, arg.Period, arg.Amount, arg.PresentDays, arg.NonVegDays,
		r.DailyRate, r.NonVegRate, r.RoomRent, r.WaterCharges, r.ElectricityCharges, r.EstablishmentCharges,
		arg.GeneratedAt).Scan(&id, &created)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("upsert bill: %w", err)
	}
	return id, created, nil
}

// GetBill fetches one bill by id.
func (s *Store) GetBill(ctx context.Context, id uuid.UUID) (Bill, error) {
	if err := s.ready(); err != nil {
		return Bill{}, err
	}
	b, err := scanBill(s.db.QueryRow(ctx, `SELECT `+billColumns+`
FROM bills b JOIN students s ON s.id = b.student_id WHERE b.id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return Bill{}, ErrNotFound
		}
		return Bill{}, fmt.Errorf("get bill: %w", err)
	}
	return b, nil
}

// ListBills returns one page of bills matching the filter ordered by period then reg_num,
// together with the number of bills matching it overall.
func (s *Store) ListBills(ctx context.Context, f BillFilter) ([]Bill, int, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	var (
		conds []string
		args  []any
	)
	if p := strings.TrimSpace(f.Period); p != "" {
		args = append(args, p)
		conds = append(conds, fmt.Sprintf("b.period = $%d", len(args)))
	}
	if reg := strings.TrimSpace(f.RegNum); reg != "" {
		args = append(args, reg)
		conds = append(conds, fmt.Sprintf("s.reg_num = $%d", len(args)))
	}
	if f.UnpaidOnly {
		conds = append(conds, "NOT b.is_paid")
	}
	from := ` FROM bills b JOIN students s ON s.id = b.student_id`
	if len(conds) > 0 {
		from += " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bills: %w", err)
	}

	limit := clampLimit(f.Limit)
	args = append(args, limit, max(f.Offset, 0))
	query := `SELECT ` + billColumns + from +
		fmt.Sprintf(" ORDER BY b.period DESC, s.reg_num LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	bills := make([]Bill, 0, limit)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, 0, err
		}
		bills = append(bills, b)
	}
	return bills, total, rows.Err()
}

// SetBillPaid flips the payment flag of a bill.
func (s *Store) SetBillPaid(ctx context.Context, id uuid.UUID, paid bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	tag, err := s.db.Exec(ctx, `UPDATE bills SET is_paid = $2 WHERE id = $1`, id, paid)
	if err != nil {
		return fmt.Errorf("set bill paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SummarizePeriod aggregates billed and paid totals for a period.
func (s *Store) SummarizePeriod(ctx context.Context, period string) (BillSummary, error) {
	if err := s.ready(); err != nil {
		return BillSummary{}, err
	}
	sum := BillSummary{Period: period}
	err := s.db.QueryRow(ctx, `SELECT COUNT(*),
       COALESCE(SUM(amount), 0),
       COUNT(*) FILTER (WHERE is_paid),
       COALESCE(SUM(amount) FILTER (WHERE is_paid), 0)
FROM bills WHERE period = $1`, period).Scan(&sum.Bills, &sum.Billed, &sum.PaidBills, &sum.PaidAmount)
	if err != nil {
		return BillSummary{}, fmt.Errorf("summarize period: %w", err)
	}
	return sum, nil
}
