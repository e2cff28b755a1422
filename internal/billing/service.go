package billing

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-mess/internal/cache"
	"github.com/noah-isme/backend-mess/internal/common"
	"github.com/noah-isme/backend-mess/internal/store"
)

// Store is the persistence surface used to read and settle bills.
type Store interface {
	ListBills(ctx context.Context, filter store.BillFilter) ([]store.Bill, int, error)
	GetBill(ctx context.Context, id uuid.UUID) (store.Bill, error)
	SetBillPaid(ctx context.Context, id uuid.UUID, paid bool) error
	SummarizePeriod(ctx context.Context, period string) (store.BillSummary, error)
}

// Service serves bill listings, payment updates and cached period summaries.
type Service struct {
	Store  Store
	Cache  *cache.JSON
	Logger *zerolog.Logger
}

// NewService constructs the bill service.
func NewService(st Store, c *cache.JSON, logger *zerolog.Logger) *Service {
	return &Service{Store: st, Cache: c, Logger: logger}
}

func (s *Service) logger() *zerolog.Logger {
	if s.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return s.Logger
}

// Filter narrows bill listings.
type Filter struct {
	Month  string
	RegNum string
	Unpaid bool
	Limit  int
	Offset int
}

// List returns one page of bills visible to the caller and the number matching overall.
// Students only see their own bills.
func (s *Service) List(ctx context.Context, actor common.Identity, f Filter) ([]store.Bill, int, error) {
	if s.Store == nil {
		return nil, 0, store.ErrUnavailable
	}
	bf := store.BillFilter{RegNum: strings.TrimSpace(f.RegNum), UnpaidOnly: f.Unpaid, Limit: f.Limit, Offset: f.Offset}
	if strings.TrimSpace(f.Month) != "" {
		p, err := ParsePeriod(f.Month)
		if err != nil {
			return nil, 0, common.InvalidInput("month must be formatted as YYYY-MM", err)
		}
		bf.Period = p.String()
	}
	if !actor.IsStaff() {
		if strings.TrimSpace(actor.RegNum) == "" {
			return nil, 0, common.Forbidden("no student profile linked to this account")
		}
		bf.RegNum = actor.RegNum
	}
	return s.Store.ListBills(ctx, bf)
}

// Get returns one bill. Students asking for another student's bill get a not-found.
func (s *Service) Get(ctx context.Context, actor common.Identity, id uuid.UUID) (store.Bill, error) {
	if s.Store == nil {
		return store.Bill{}, store.ErrUnavailable
	}
	bill, err := s.Store.GetBill(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Bill{}, common.NotFound("bill not found")
		}
		return store.Bill{}, err
	}
	if !actor.IsStaff() && bill.RegNum != actor.RegNum {
		return store.Bill{}, common.NotFound("bill not found")
	}
	return bill, nil
}

// MarkPaid records the outcome of the external payment workflow on a bill.
func (s *Service) MarkPaid(ctx context.Context, actor common.Identity, id uuid.UUID, paid bool) (store.Bill, error) {
	bill, err := s.Get(ctx, actor, id)
	if err != nil {
		return store.Bill{}, err
	}
	if err := s.Store.SetBillPaid(ctx, id, paid); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Bill{}, common.NotFound("bill not found")
		}
		return store.Bill{}, err
	}
	bill.IsPaid = paid
	if err := s.Cache.Delete(ctx, cache.KeyBillSummary(bill.Period)); err != nil {
		s.logger().Warn().Err(err).Str("period", bill.Period).Msg("bill summary cache invalidation failed")
	}
	s.logger().Info().
		Str("bill_id", id.String()).
		Str("period", bill.Period).
		Str("actor", actor.Subject).
		Bool("is_paid", paid).
		Msg("bill payment status updated")
	return bill, nil
}

// Summary returns billed and paid totals for a period, served from cache when fresh.
func (s *Service) Summary(ctx context.Context, month string) (store.BillSummary, error) {
	p, err := ParsePeriod(month)
	if err != nil {
		return store.BillSummary{}, common.InvalidInput("month must be formatted as YYYY-MM", err)
	}
	if s.Store == nil {
		return store.BillSummary{}, store.ErrUnavailable
	}
	key := cache.KeyBillSummary(p.String())
	var cached store.BillSummary
	if hit, err := s.Cache.Get(ctx, key, &cached); err != nil {
		s.logger().Warn().Err(err).Str("key", key).Msg("bill summary cache read failed")
	} else if hit {
		return cached, nil
	}
	sum, err := s.Store.SummarizePeriod(ctx, p.String())
	if err != nil {
		return store.BillSummary{}, err
	}
	if err := s.Cache.Set(ctx, key, sum); err != nil {
		s.logger().Warn().Err(err).Str("key", key).Msg("bill summary cache write failed")
	}
	return sum, nil
}
