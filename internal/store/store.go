// Package store is the Postgres-backed persistence layer shared by attendance
// ingestion and bill generation. Every write is a single-statement upsert keyed
// by the entity's natural key, so no transaction spans a batch.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a lookup by key matches no row.
	ErrNotFound = errors.New("store: not found")
	// ErrUnavailable indicates the pool dependency is not configured.
	ErrUnavailable = errors.New("store: database unavailable")
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides typed accessors over the mess tables.
type Store struct {
	db DB
}

// New constructs a Store backed by a pgx connection pool.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		return &Store{}
	}
	return &Store{db: pool}
}

// NewWithDB wraps any pgx-compatible handle such as a transaction.
func NewWithDB(db DB) *Store {
	return &Store{db: db}
}

func (s *Store) ready() error {
	if s == nil || s.db == nil {
		return ErrUnavailable
	}
	return nil
}

// Student is a row of the students table.
type Student struct {
	ID        uuid.UUID `json:"id"`
	RegNum    string    `json:"reg_num"`
	Name      string    `json:"name"`
	Branch    string    `json:"branch"`
	Year      int       `json:"year"`
	CreatedAt time.Time `json:"created_at"`
}

// Attendance is a row of the attendance table joined with the student's reg_num.
type Attendance struct {
	ID        uuid.UUID `json:"id"`
	StudentID uuid.UUID `json:"student_id"`
	RegNum    string    `json:"reg_num"`
	Date      time.Time `json:"date"`
	IsPresent bool      `json:"is_present"`
	MealType  string    `json:"meal_type"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AttendanceUpsert carries the values written for one (student, date) key.
type AttendanceUpsert struct {
	StudentID uuid.UUID
	Date      time.Time
	IsPresent bool
	MealType  string
}

// AttendanceFilter narrows attendance listings. Zero values mean "any".
type AttendanceFilter struct {
	StudentID uuid.UUID
	RegNum    string
	Date      *time.Time
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

// AttendanceTotals aggregates a student's attendance inside a date range.
type AttendanceTotals struct {
	StudentID   uuid.UUID
	PresentDays int
	NonVegDays  int
}

// Numeric shapes of the bills table. Keep in step with the migrations.
const (
	MoneyScale      = 2
	RatePrecision   = 8
	AmountPrecision = 10
)

var (
	// MaxRate is the largest value a rate snapshot column holds.
	MaxRate = numericMax(RatePrecision, MoneyScale)
	// MaxAmount is the largest value bills.amount holds.
	MaxAmount = numericMax(AmountPrecision, MoneyScale)
)

func numericMax(precision, scale int32) decimal.Decimal {
	return decimal.New(1, precision-scale).Sub(decimal.New(1, -scale))
}

// RateSnapshot stores the rate values a bill was computed with.
type RateSnapshot struct {
	DailyRate            decimal.Decimal `json:"daily_rate"`
	NonVegRate           decimal.Decimal `json:"nv_plate_rate"`
	RoomRent             decimal.Decimal `json:"room_rent"`
	WaterCharges         decimal.Decimal `json:"water_charges"`
	ElectricityCharges   decimal.Decimal `json:"electricity_charges"`
	EstablishmentCharges decimal.Decimal `json:"establishment_charges"`
}

// Bill is a row of the bills table joined with student details.
type Bill struct {
	ID          uuid.UUID       `json:"id"`
	StudentID   uuid.UUID       `json:"student_id"`
	RegNum      string          `json:"student_reg_num"`
	StudentName string          `json:"student_name"`
	Period      string          `json:"month"`
	Amount      decimal.Decimal `json:"amount"`
	PresentDays int             `json:"present_days"`
	NonVegDays  int             `json:"non_veg_days"`
	RateSnapshot
	IsPaid      bool      `json:"is_paid"`
	GeneratedAt time.Time `json:"generated_date"`
}

// BillUpsert carries the values written for one (student, period) key.
type BillUpsert struct {
	StudentID   uuid.UUID
	Period      string
	Amount      decimal.Decimal
	PresentDays int
	NonVegDays  int
	Rates       RateSnapshot
	GeneratedAt time.Time
}

// BillFilter narrows bill listings. Zero values mean "any".
type BillFilter struct {
	Period     string
	RegNum     string
	UnpaidOnly bool
	Limit      int
	Offset     int
}

// BillSummary aggregates the bills of one period.
type BillSummary struct {
	Period     string          `json:"month"`
	Bills      int             `json:"bills"`
	Billed     decimal.Decimal `json:"billed"`
	PaidBills  int             `json:"paid_bills"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
}

// AuditEntry is an append-only record of a staff action.
type AuditEntry struct {
	ActorSubject *string
	ActorRole    *string
	Action       string
	ResourceType string
	Method       string
	Path         string
	Status       int
	IP           *string
	RequestID    *string
	Metadata     []byte
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
