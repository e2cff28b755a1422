package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-mess/internal/common"
)

var staff = common.Identity{Subject: "staff-1", Role: common.RoleStaff}

func dec(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func januaryInput() GenerateInput {
	return GenerateInput{Month: "2025-01", Rates: RateInput{DailyRate: dec("65"), NonVegRate: dec("27")}}
}

func newTestEngine(st *fakeStore) *Engine {
	e := NewEngine(st, nil, DefaultFixedCharges(), nil)
	e.Now = func() time.Time { return time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC) }
	return e
}

func TestGenerateWorkedExample(t *testing.T) {
	st := newFakeStore()
	s := st.addStudent("21CS001", 12, 2)

	res, err := newTestEngine(st).Generate(context.Background(), staff, januaryInput())
	require.NoError(t, err)
	require.Equal(t, 1, res.Created)
	require.Equal(t, 0, res.Updated)
	require.Equal(t, "Bills generated for 1 students.", res.Message)

	bill, ok := st.bill(s, "2025-01")
	require.True(t, ok)
	require.Equal(t, "1534", bill.Amount.String())
	require.Equal(t, 12, bill.PresentDays)
	require.Equal(t, 2, bill.NonVegDays)
	require.True(t, bill.RoomRent.Equal(decimal.NewFromInt(150)))
	require.True(t, bill.DailyRate.Equal(decimal.NewFromInt(65)))
}

func TestGenerateZeroAttendanceBillsFixedTotal(t *testing.T) {
	st := newFakeStore()
	s := st.addStudent("21CS002", 0, 0)

	_, err := newTestEngine(st).Generate(context.Background(), staff, januaryInput())
	require.NoError(t, err)
	bill, ok := st.bill(s, "2025-01")
	require.True(t, ok)
	require.True(t, bill.Amount.Equal(decimal.NewFromInt(700)))
}

func TestGenerateIsIdempotent(t *testing.T) {
	st := newFakeStore()
	a := st.addStudent("21CS001", 12, 2)
	st.addStudent("21CS002", 3, 0)
	e := newTestEngine(st)

	first, err := e.Generate(context.Background(), staff, januaryInput())
	require.NoError(t, err)
	require.Equal(t, 2, first.Created)
	before, _ := st.bill(a, "2025-01")

	second, err := e.Generate(context.Background(), staff, januaryInput())
	require.NoError(t, err)
	require.Equal(t, 0, second.Created)
	require.Equal(t, 2, second.Updated)
	require.Len(t, st.bills, 2)

	after, _ := st.bill(a, "2025-01")
	require.Equal(t, before.ID, after.ID)
	require.Equal(t, before.Amount.String(), after.Amount.String())
}

func TestGenerateKeepsPaidFlagAndRewritesSnapshot(t *testing.T) {
	st := newFakeStore()
	s := st.addStudent("21CS001", 10, 0)
	e := newTestEngine(st)

	_, err := e.Generate(context.Background(), staff, januaryInput())
	require.NoError(t, err)
	bill, _ := st.bill(s, "2025-01")
	require.NoError(t, st.SetBillPaid(context.Background(), bill.ID, true))

	in := januaryInput()
	in.Rates.DailyRate = dec("70")
	_, err = e.Generate(context.Background(), staff, in)
	require.NoError(t, err)

	bill, _ = st.bill(s, "2025-01")
	require.True(t, bill.IsPaid)
	require.True(t, bill.DailyRate.Equal(decimal.NewFromInt(70)))
	require.Equal(t, "1400", bill.Amount.String())
}

func TestGenerateConcurrentRunsKeepOneBillPerKey(t *testing.T) {
	st := newFakeStore()
	for _, reg := range []string{"A1", "A2", "A3", "A4"} {
		st.addStudent(reg, 5, 1)
	}
	e := newTestEngine(st)

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Generate(context.Background(), staff, januaryInput())
			assert.NoError(t, err)
			mu.Lock()
			created += res.Created
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, st.bills, 4)
	require.Equal(t, 4, created)
}

func TestGenerateRejectsBadInputBeforeTouchingStore(t *testing.T) {
	cases := map[string]GenerateInput{
		"bad month":       {Month: "2025/01", Rates: RateInput{DailyRate: dec("65"), NonVegRate: dec("27")}},
		"missing month":   {Rates: RateInput{DailyRate: dec("65"), NonVegRate: dec("27")}},
		"missing daily":   {Month: "2025-01", Rates: RateInput{NonVegRate: dec("27")}},
		"missing nv":      {Month: "2025-01", Rates: RateInput{DailyRate: dec("65")}},
		"negative daily":  {Month: "2025-01", Rates: RateInput{DailyRate: dec("-1"), NonVegRate: dec("27")}},
		"negative charge": {Month: "2025-01", Rates: RateInput{DailyRate: dec("65"), NonVegRate: dec("27"), WaterCharges: dec("-5")}},
		"sub-cent daily":  {Month: "2025-01", Rates: RateInput{DailyRate: dec("0.005"), NonVegRate: dec("27")}},
		"oversized nv":    {Month: "2025-01", Rates: RateInput{DailyRate: dec("65"), NonVegRate: dec("1000000")}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			st := newFakeStore()
			st.addStudent("21CS001", 1, 0)
			_, err := newTestEngine(st).Generate(context.Background(), staff, in)
			appErr, ok := common.AsAppError(err)
			require.True(t, ok, "expected AppError, got %v", err)
			require.Equal(t, 400, appErr.HTTPStatus)
			require.Zero(t, st.calls)
		})
	}
}

func TestGenerateAbortsOnUpsertFailureKeepingCommittedBills(t *testing.T) {
	st := newFakeStore()
	first := st.addStudent("A1", 1, 0)
	broken := st.addStudent("A2", 1, 0)
	st.addStudent("A3", 1, 0)
	st.failOn, st.failErr = broken.ID, errors.New("deadlock detected")

	res, err := newTestEngine(st).Generate(context.Background(), staff, januaryInput())
	require.Error(t, err)
	require.Contains(t, err.Error(), "A2")
	require.False(t, common.IsAppError(err))
	require.Equal(t, 1, res.Created)

	_, ok := st.bill(first, "2025-01")
	require.True(t, ok)
	require.Len(t, st.bills, 1)
}

func TestGenerateOverridesFixedChargeDefaults(t *testing.T) {
	st := newFakeStore()
	s := st.addStudent("21CS001", 0, 0)
	e := newTestEngine(st)

	in := januaryInput()
	in.Rates.RoomRent = dec("0")
	_, err := e.Generate(context.Background(), staff, in)
	require.NoError(t, err)
	bill, _ := st.bill(s, "2025-01")
	require.Equal(t, "550", bill.Amount.String())
	require.True(t, bill.RoomRent.IsZero())
}
