package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// UpsertAttendance writes the (student, date) record, replacing any previous value.
func (s *Store) UpsertAttendance(ctx context.Context, arg AttendanceUpsert) error {
	if err := s.ready(); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `INSERT INTO attendance (student_id, date, is_present, meal_type, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (student_id, date)
DO UPDATE SET is_present = EXCLUDED.is_present, meal_type = EXCLUDED.meal_type, updated_at = NOW()`,
		arg.StudentID, arg.Date, arg.IsPresent, arg.MealType)
	if err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// ListAttendance returns one page of attendance rows matching the filter, newest first,
// together with the number of rows matching it overall.
func (s *Store) ListAttendance(ctx context.Context, f AttendanceFilter) ([]Attendance, int, error) {
	if err := s.ready(); err != nil {
		return nil, 0, err
	}
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.StudentID != uuid.Nil {
		add("a.student_id = $%d", f.StudentID)
	}
	if reg := strings.TrimSpace(f.RegNum); reg != "" {
		add("s.reg_num = $%d", reg)
	}
	if f.Date != nil {
		add("a.date = $%d", *f.Date)
	}
	if f.From != nil {
		add("a.date >= $%d", *f.From)
	}
	if f.To != nil {
		add("a.date < $%d", *f.To)
	}
	from := ` FROM attendance a JOIN students s ON s.id = a.student_id`
	if len(conds) > 0 {
		from += " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}

	limit := clampLimit(f.Limit)
	args = append(args, limit, max(f.Offset, 0))
	query := `SELECT a.id, a.student_id, s.reg_num, a.date, a.is_present, a.meal_type, a.updated_at` + from +
		fmt.Sprintf(" ORDER BY a.date DESC, s.reg_num LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	out := make([]Attendance, 0, limit)
	for rows.Next() {
		var a Attendance
		if err := rows.Scan(&a.ID, &a.StudentID, &a.RegNum, &a.Date, &a.IsPresent, &a.MealType, &a.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

// AttendanceTotals aggregates present and non-veg days per student for dates in [from, to).
// Students without records in the range are absent from the result.
func (s *Store) AttendanceTotals(ctx context.Context, from, to time.Time) (map[uuid.UUID]AttendanceTotals, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `SELECT student_id,
       COUNT(*) FILTER (WHERE is_present) AS present_days,
       COUNT(*) FILTER (WHERE is_present AND meal_type = 'Non-Veg') AS non_veg_days
FROM attendance
WHERE date >= $1 AND date < $2
GROUP BY student_id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("attendance totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[uuid.UUID]AttendanceTotals)
	for rows.Next() {
		var t AttendanceTotals
		if err := rows.Scan(&t.StudentID, &t.PresentDays, &t.NonVegDays); err != nil {
			return nil, err
		}
		totals[t.StudentID] = t
	}
	return totals, rows.Err()
}

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
