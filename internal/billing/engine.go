package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-mess/internal/cache"
	"github.com/noah-isme/backend-mess/internal/common"
	"github.com/noah-isme/backend-mess/internal/obs"
	"github.com/noah-isme/backend-mess/internal/store"
)

// EngineStore is the persistence surface used by bill generation.
type EngineStore interface {
	ListStudents(ctx context.Context) ([]store.Student, error)
	AttendanceTotals(ctx context.Context, from, to time.Time) (map[uuid.UUID]store.AttendanceTotals, error)
	UpsertBill(ctx context.Context, arg store.BillUpsert) (uuid.UUID, bool, error)
}

// GenerateInput selects the period to bill and the rates to bill it with.
type GenerateInput struct {
	Month string
	Rates RateInput
}

// GenerateResult reports how many bills a run inserted and how many it rewrote.
type GenerateResult struct {
	Message string `json:"message"`
	Created int    `json:"created"`
	Updated int    `json:"updated"`
}

// Engine turns stored attendance into one bill per student per period.
type Engine struct {
	Store    EngineStore
	Cache    *cache.JSON
	Defaults FixedCharges
	Logger   *zerolog.Logger
	Now      func() time.Time
}

// NewEngine constructs an engine that applies defaults to omitted fixed charges.
func NewEngine(st EngineStore, c *cache.JSON, defaults FixedCharges, logger *zerolog.Logger) *Engine {
	return &Engine{Store: st, Cache: c, Defaults: defaults, Logger: logger, Now: time.Now}
}

func (e *Engine) logger() *zerolog.Logger {
	if e.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return e.Logger
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// Generate bills every known student for the requested period. Input is validated
// before the store is read. Each bill is a single upsert on (student, period), so a
// re-run rewrites amounts and the rate snapshot in place and leaves is_paid alone.
//
// A failed upsert stops the run. Bills written before the failure stay written and the
// counts so far are returned together with the error.
func (e *Engine) Generate(ctx context.Context, actor common.Identity, in GenerateInput) (GenerateResult, error) {
	period, err := ParsePeriod(in.Month)
	if err != nil {
		return GenerateResult{}, common.InvalidInput("month must be formatted as YYYY-MM", err)
	}
	rates, err := in.Rates.Resolve(e.Defaults)
	if err != nil {
		return GenerateResult{}, common.InvalidInput(err.Error(), err)
	}
	if e.Store == nil {
		return GenerateResult{}, store.ErrUnavailable
	}

	start := time.Now()
	key := period.String()
	students, err := e.Store.ListStudents(ctx)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate %s: %w", key, err)
	}
	from, to := period.Bounds()
	totals, err := e.Store.AttendanceTotals(ctx, from, to)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("generate %s: %w", key, err)
	}

	var res GenerateResult
	generatedAt := e.now()
	snapshot := rates.Snapshot()
	for _, st := range students {
		t := totals[st.ID]
		_, created, err := e.Store.UpsertBill(ctx, store.BillUpsert{
			StudentID:   st.ID,
			Period:      key,
			Amount:      Compute(t, rates),
			PresentDays: t.PresentDays,
			NonVegDays:  t.NonVegDays,
			Rates:       snapshot,
			GeneratedAt: generatedAt,
		})
		if err != nil {
			e.finish(ctx, key, actor, &res, start)
			return res, fmt.Errorf("generate %s: bill for %s: %w", key, st.RegNum, err)
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	e.finish(ctx, key, actor, &res, start)
	return res, nil
}

func (e *Engine) finish(ctx context.Context, period string, actor common.Identity, res *GenerateResult, start time.Time) {
	res.Message = fmt.Sprintf("Bills generated for %d students.", res.Created+res.Updated)
	elapsed := time.Since(start)
	if obs.BillsGeneratedTotal != nil {
		obs.BillsGeneratedTotal.WithLabelValues("created").Add(float64(res.Created))
		obs.BillsGeneratedTotal.WithLabelValues("updated").Add(float64(res.Updated))
	}
	if obs.BillGenerationDuration != nil {
		obs.BillGenerationDuration.Observe(obs.DurationMillis(elapsed))
	}
	if res.Created+res.Updated > 0 {
		if err := e.Cache.Delete(ctx, cache.KeyBillSummary(period)); err != nil {
			e.logger().Warn().Err(err).Str("period", period).Msg("bill summary cache invalidation failed")
		}
	}
	e.logger().Info().
		Str("period", period).
		Str("actor", actor.Subject).
		Int("created", res.Created).
		Int("updated", res.Updated).
		Dur("elapsed", elapsed).
		Msg("bill generation finished")
}
