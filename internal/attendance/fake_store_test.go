package attendance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-mess/internal/store"
)

type attendanceKey struct {
	student uuid.UUID
	date    string
}

type fakeStore struct {
	students  map[string]store.Student
	rows      map[attendanceKey]store.AttendanceUpsert
	upserts   int
	failFor   map[uuid.UUID]error
	lastQuery store.AttendanceFilter
}

func newFakeStore(regNums ...string) *fakeStore {
	fs := &fakeStore{
		students: map[string]store.Student{},
		rows:     map[attendanceKey]store.AttendanceUpsert{},
		failFor:  map[uuid.UUID]error{},
	}
	for _, reg := range regNums {
		fs.students[reg] = store.Student{ID: uuid.New(), RegNum: reg}
	}
	return fs
}

func (f *fakeStore) GetStudentByRegNum(_ context.Context, regNum string) (store.Student, error) {
	st, ok := f.students[regNum]
	if !ok {
		return store.Student{}, store.ErrNotFound
	}
	return st, nil
}

func (f *fakeStore) UpsertAttendance(_ context.Context, arg store.AttendanceUpsert) error {
	if err := f.failFor[arg.StudentID]; err != nil {
		return err
	}
	f.upserts++
	f.rows[attendanceKey{arg.StudentID, arg.Date.Format(time.DateOnly)}] = arg
	return nil
}

func (f *fakeStore) ListAttendance(_ context.Context, filter store.AttendanceFilter) ([]store.Attendance, int, error) {
	f.lastQuery = filter
	var out []store.Attendance
	for key, row := range f.rows {
		if filter.StudentID != uuid.Nil && key.student != filter.StudentID {
			continue
		}
		out = append(out, store.Attendance{StudentID: key.student, Date: row.Date, IsPresent: row.IsPresent, MealType: row.MealType})
	}
	total := len(out)
	if filter.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

func (f *fakeStore) row(regNum, date string) (store.AttendanceUpsert, bool) {
	st, ok := f.students[regNum]
	if !ok {
		return store.AttendanceUpsert{}, false
	}
	row, ok := f.rows[attendanceKey{st.ID, date}]
	return row, ok
}

var errConnReset = errors.New("conn reset")
