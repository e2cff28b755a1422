package attendance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-mess/internal/common"
	"github.com/noah-isme/backend-mess/internal/obs"
	"github.com/noah-isme/backend-mess/internal/store"
)

const dateLayout = "2006-01-02"

// ErrInvalidDate is returned when the batch date is not a YYYY-MM-DD calendar date.
var ErrInvalidDate = errors.New("invalid date")

// Store is the persistence surface used by the attendance service.
type Store interface {
	GetStudentByRegNum(ctx context.Context, regNum string) (store.Student, error)
	UpsertAttendance(ctx context.Context, arg store.AttendanceUpsert) error
	ListAttendance(ctx context.Context, filter store.AttendanceFilter) ([]store.Attendance, int, error)
}

// Record is one correction inside a bulk batch. Omitted fields take the defaults
// is_present=true and meal_type=Veg.
type Record struct {
	RegNum    string `json:"reg_num"`
	IsPresent *bool  `json:"is_present,omitempty"`
	MealType  string `json:"meal_type,omitempty"`
}

// IngestInput is a batch of corrections for a single calendar date.
type IngestInput struct {
	Date    string   `json:"date"`
	Records []Record `json:"records"`
}

// IngestResult reports how many records were written and why the others were not.
type IngestResult struct {
	Message string   `json:"message"`
	Date    string   `json:"date"`
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}

// Service applies attendance batches and serves attendance listings.
type Service struct {
	Store  Store
	Logger *zerolog.Logger
}

// NewService constructs the attendance service.
func NewService(st Store, logger *zerolog.Logger) *Service {
	return &Service{Store: st, Logger: logger}
}

func (s *Service) logger() *zerolog.Logger {
	if s.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return s.Logger
}

// Ingest upserts every record of the batch independently. A missing date or an empty
// batch fails the whole call before the store is touched; anything that goes wrong for
// a single record is reported in Errors and the remaining records are still applied.
// Records repeating a reg_num are applied in order, so the later one wins.
func (s *Service) Ingest(ctx context.Context, actor common.Identity, in IngestInput) (IngestResult, error) {
	date, err := parseBatch(in)
	if err != nil {
		return IngestResult{}, err
	}
	if s.Store == nil {
		return IngestResult{}, store.ErrUnavailable
	}

	res := IngestResult{Date: date.Format(dateLayout), Errors: []string{}}
	for i, rec := range in.Records {
		if msg := s.apply(ctx, date, i, rec); msg != "" {
			res.Errors = append(res.Errors, msg)
			continue
		}
		res.Updated++
	}
	res.Message = fmt.Sprintf("Attendance updated for %d students.", res.Updated)

	if obs.AttendanceRecordsTotal != nil {
		obs.AttendanceRecordsTotal.WithLabelValues("upserted").Add(float64(res.Updated))
		obs.AttendanceRecordsTotal.WithLabelValues("rejected").Add(float64(len(res.Errors)))
	}
	level := zerolog.InfoLevel
	if len(res.Errors) > 0 {
		level = zerolog.WarnLevel
	}
	s.logger().WithLevel(level).
		Str("date", res.Date).
		Str("actor", actor.Subject).
		Int("records", len(in.Records)).
		Int("updated", res.Updated).
		Strs("errors", res.Errors).
		Msg("attendance batch applied")
	return res, nil
}

// apply writes one record and returns a description of the failure, if any.
func (s *Service) apply(ctx context.Context, date time.Time, idx int, rec Record) string {
	regNum := strings.TrimSpace(rec.RegNum)
	if regNum == "" {
		return fmt.Sprintf("record %d: reg_num is required", idx+1)
	}
	meal, err := ParseMealType(rec.MealType)
	if err != nil {
		return fmt.Sprintf("Error for %s: %v", regNum, err)
	}
	student, err := s.Store.GetStudentByRegNum(ctx, regNum)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Student with reg_num %s not found", regNum)
		}
		return fmt.Sprintf("Error for %s: %v", regNum, err)
	}
	present := true
	if rec.IsPresent != nil {
		present = *rec.IsPresent
	}
	err = s.Store.UpsertAttendance(ctx, store.AttendanceUpsert{
		StudentID: student.ID,
		Date:      date,
		IsPresent: present,
		MealType:  string(meal),
	})
	if err != nil {
		return fmt.Sprintf("Error for %s: %v", regNum, err)
	}
	return ""
}

func parseBatch(in IngestInput) (time.Time, error) {
	raw := strings.TrimSpace(in.Date)
	if raw == "" || len(in.Records) == 0 {
		return time.Time{}, common.InvalidInput("Date and records are required", nil)
	}
	date, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, common.InvalidInput("date must be formatted as YYYY-MM-DD", ErrInvalidDate)
	}
	return date, nil
}

// Filter narrows attendance listings. Date and Month are mutually exclusive.
type Filter struct {
	Date      string
	Month     string
	RegNum    string
	StudentID string
	Limit     int
	Offset    int
}

// List returns one page of attendance rows visible to the caller and the number of rows
// matching overall. Students only ever see their own records, whatever they ask for.
func (s *Service) List(ctx context.Context, actor common.Identity, f Filter) ([]store.Attendance, int, error) {
	if s.Store == nil {
		return nil, 0, store.ErrUnavailable
	}
	sf := store.AttendanceFilter{RegNum: strings.TrimSpace(f.RegNum), Limit: f.Limit, Offset: f.Offset}
	if raw := strings.TrimSpace(f.StudentID); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, 0, common.InvalidInput("student_id must be a UUID", err)
		}
		sf.StudentID = id
	}
	if !actor.IsStaff() {
		if strings.TrimSpace(actor.RegNum) == "" {
			return nil, 0, common.Forbidden("no student profile linked to this account")
		}
		sf.RegNum = actor.RegNum
	}
	switch {
	case strings.TrimSpace(f.Date) != "" && strings.TrimSpace(f.Month) != "":
		return nil, 0, common.InvalidInput("date and month cannot be combined", nil)
	case strings.TrimSpace(f.Date) != "":
		d, err := time.Parse(dateLayout, strings.TrimSpace(f.Date))
		if err != nil {
			return nil, 0, common.InvalidInput("date must be formatted as YYYY-MM-DD", ErrInvalidDate)
		}
		sf.Date = &d
	case strings.TrimSpace(f.Month) != "":
		start, err := time.Parse("2006-01", strings.TrimSpace(f.Month))
		if err != nil {
			return nil, 0, common.InvalidInput("month must be formatted as YYYY-MM", err)
		}
		end := start.AddDate(0, 1, 0)
		sf.From, sf.To = &start, &end
	}
	return s.Store.ListAttendance(ctx, sf)
}
