package billing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/backend-mess/internal/store"
)

type billKey struct {
	student uuid.UUID
	period  string
}

// fakeStore keeps bills in a map keyed like the bills unique constraint.
type fakeStore struct {
	mu       sync.Mutex
	students []store.Student
	totals   map[uuid.UUID]store.AttendanceTotals
	bills    map[billKey]*store.Bill
	calls    int
	failOn   uuid.UUID
	failErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{totals: map[uuid.UUID]store.AttendanceTotals{}, bills: map[billKey]*store.Bill{}}
}

func (f *fakeStore) addStudent(regNum string, present, nonVeg int) store.Student {
	st := store.Student{ID: uuid.New(), RegNum: regNum}
	f.students = append(f.students, st)
	if present > 0 {
		f.totals[st.ID] = store.AttendanceTotals{StudentID: st.ID, PresentDays: present, NonVegDays: nonVeg}
	}
	return st
}

func (f *fakeStore) ListStudents(context.Context) ([]store.Student, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return append([]store.Student(nil), f.students...), nil
}

func (f *fakeStore) AttendanceTotals(context.Context, time.Time, time.Time) (map[uuid.UUID]store.AttendanceTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make(map[uuid.UUID]store.AttendanceTotals, len(f.totals))
	for k, v := range f.totals {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) UpsertBill(_ context.Context, arg store.BillUpsert) (uuid.UUID, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failErr != nil && arg.StudentID == f.failOn {
		return uuid.Nil, false, f.failErr
	}
	key := billKey{arg.StudentID, arg.Period}
	if b, ok := f.bills[key]; ok {
		b.Amount = arg.Amount
		b.PresentDays = arg.PresentDays
		b.NonVegDays = arg.NonVegDays
		b.RateSnapshot = arg.Rates
		b.GeneratedAt = arg.GeneratedAt
		return b.ID, false, nil
	}
	b := &store.Bill{
		ID:           uuid.New(),
		StudentID:    arg.StudentID,
		RegNum:       f.regNum(arg.StudentID),
		Period:       arg.Period,
		Amount:       arg.Amount,
		PresentDays:  arg.PresentDays,
		NonVegDays:   arg.NonVegDays,
		RateSnapshot: arg.Rates,
		GeneratedAt:  arg.GeneratedAt,
	}
	f.bills[key] = b
	return b.ID, true, nil
}

func (f *fakeStore) ListBills(_ context.Context, filter store.BillFilter) ([]store.Bill, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Bill
	for _, b := range f.bills {
		if filter.Period != "" && b.Period != filter.Period {
			continue
		}
		if filter.RegNum != "" && b.RegNum != filter.RegNum {
			continue
		}
		if filter.UnpaidOnly && b.IsPaid {
			continue
		}
		out = append(out, *b)
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

func (f *fakeStore) GetBill(_ context.Context, id uuid.UUID) (store.Bill, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bills {
		if b.ID == id {
			return *b, nil
		}
	}
	return store.Bill{}, store.ErrNotFound
}

func (f *fakeStore) SetBillPaid(_ context.Context, id uuid.UUID, paid bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bills {
		if b.ID == id {
			b.IsPaid = paid
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) SummarizePeriod(_ context.Context, period string) (store.BillSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	sum := store.BillSummary{Period: period, Billed: decimal.Zero, PaidAmount: decimal.Zero}
	for _, b := range f.bills {
		if b.Period != period {
			continue
		}
		sum.Bills++
		sum.Billed = sum.Billed.Add(b.Amount)
		if b.IsPaid {
			sum.PaidBills++
			sum.PaidAmount = sum.PaidAmount.Add(b.Amount)
		}
	}
	return sum, nil
}

func (f *fakeStore) regNum(id uuid.UUID) string {
	for _, st := range f.students {
		if st.ID == id {
			return st.RegNum
		}
	}
	return ""
}

func (f *fakeStore) bill(st store.Student, period string) (store.Bill, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bills[billKey{st.ID, period}]
	if !ok {
		return store.Bill{}, false
	}
	return *b, true
}
