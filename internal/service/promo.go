package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/dukerupert/mercato/internal/domain"
	"github.com/dukerupert/mercato/internal/repository"
)

// PromoEngine validates promo codes and commits their usage. Validation
// never changes usage counts.
type PromoEngine struct {
	logger *slog.Logger
	now    func() time.Time
}

func NewPromoEngine(logger *slog.Logger) *PromoEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromoEngine{logger: logger, now: time.Now}
}

// NormalizePromoCode trims and upper-cases a code as stored.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks code against pc and prices the discount. A rejected code
// is a result with Valid=false and a reason, not an error; errors are
// reserved for store failures. The resolved code is returned when valid.
func (e *PromoEngine) Validate(ctx context.Context, q repository.Querier, code string, pc domain.PromoContext) (*domain.PromoResult, *domain.PromoCode, error) {
	code = NormalizePromoCode(code)
	result := &domain.PromoResult{Code: code}

	row, err := q.GetPromoCodeByCode(ctx, code)
	if err != nil {
		if repository.IsNotFound(err) {
			result.Reason = domain.PromoReasonNotFound
			return result, nil, nil
		}
		return nil, nil, fmt.Errorf("failed to load promo code: %w", err)
	}
	promo := toDomainPromo(row)

	reason := promo.CheckAvailability(e.now())
	if reason == "" && promo.UsageLimitPerCustomer != nil && pc.CustomerID != uuid.Nil {
		used, err := q.CountCustomerPromoUsage(ctx, repository.CountCustomerPromoUsageParams{
			PromoCodeID: promo.ID,
			CustomerID:  pc.CustomerID,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to count promo usage: %w", err)
		}
		reason = promo.CheckCustomerUsage(used)
	}
	if reason == "" {
		reason = promo.CheckOrder(pc)
	}
	if reason != "" {
		result.Reason = reason
		return result, nil, nil
	}

	result.Valid = true
	result.DiscountAmount = promo.CalculateDiscount(pc.OrderAmount)
	return result, &promo, nil
}

// CommitUsage counts the order's promo code as used, once per order. It
// reports whether this call did the commit.
func (e *PromoEngine) CommitUsage(ctx context.Context, q repository.Querier, order repository.Order) (bool, error) {
	if !order.PromoCodeID.Valid {
		return false, nil
	}

	marked, err := q.MarkOrderPromoCommitted(ctx, order.ID)
	if err != nil {
		return false, fmt.Errorf("failed to mark promo committed: %w", err)
	}
	if marked == 0 {
		return false, nil
	}

	promoID := uuid.UUID(order.PromoCodeID.Bytes)
	n, err := q.IncrementPromoUsage(ctx, promoID)
	if err != nil {
		return false, fmt.Errorf("failed to increment promo usage: %w", err)
	}
	if n == 0 {
		// The discount was already granted at checkout; the payment stands.
		e.logger.WarnContext(ctx, "promo usage limit reached at commit",
			"promo_code_id", promoID,
			"order_id", order.ID,
		)
	}
	return true, nil
}

func toDomainPromo(row repository.PromoCode) domain.PromoCode {
	p := domain.PromoCode{
		ID:                   row.ID,
		Code:                 row.Code,
		DiscountType:         domain.DiscountType(row.DiscountType),
		DiscountValue:        numericToDecimal(row.DiscountValue),
		UsageCount:           row.UsageCount,
		IsActive:             row.IsActive,
		ApplicableProducts:   validUUIDs(row.ApplicableProducts),
		ApplicableCategories: validUUIDs(row.ApplicableCategories),
	}
	if row.MinOrderAmountCents.Valid {
		v := row.MinOrderAmountCents.Int64
		p.MinOrderAmount = &v
	}
	if row.MaxDiscountAmountCents.Valid {
		v := row.MaxDiscountAmountCents.Int64
		p.MaxDiscountAmount = &v
	}
	if row.UsageLimit.Valid {
		v := row.UsageLimit.Int32
		p.UsageLimit = &v
	}
	if row.UsageLimitPerCustomer.Valid {
		v := row.UsageLimitPerCustomer.Int32
		p.UsageLimitPerCustomer = &v
	}
	if row.StartsAt.Valid {
		v := row.StartsAt.Time
		p.StartsAt = &v
	}
	if row.ExpiresAt.Valid {
		v := row.ExpiresAt.Time
		p.ExpiresAt = &v
	}
	return p
}

func numericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.Int == nil || n.NaN {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}

func validUUIDs(ids []pgtype.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id.Valid {
			out = append(out, uuid.UUID(id.Bytes))
		}
	}
	return out
}
