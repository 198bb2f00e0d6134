package service

import (
	"context"
	"strings"
	"testing"

	"github.com/sileshop/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuoteBuild(t *testing.T) {
	svc := NewQuoteService(testCatalog(t), "USD")

	q, err := svc.Build(context.Background(), []domain.CartLine{
		{ProductID: "basic", Months: 6, Quantity: 1},
		{ProductID: "pro", Months: 12, Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "usd", q.Currency)
	require.Len(t, q.Lines, 2)
	assert.Equal(t, domain.QuotedLine{
		ProductID: "basic", Name: "Basic", Months: 6, Quantity: 1,
		UnitAmountCents: 2700, LineAmountCents: 2700,
	}, q.Lines[0])
	assert.Equal(t, int64(9600), q.Lines[1].UnitAmountCents)
	assert.Equal(t, int64(19200), q.Lines[1].LineAmountCents)
	assert.Equal(t, int64(21900), q.TotalCents)
}

func TestQuoteDropsUnknownProducts(t *testing.T) {
	svc := NewQuoteService(testCatalog(t), "usd")

	q, err := svc.Build(context.Background(), []domain.CartLine{
		{ProductID: "ghost", Months: 1, Quantity: 1},
		{ProductID: "", Months: 1, Quantity: 1},
		{ProductID: strings.Repeat("x", 65), Months: 1, Quantity: 1},
		{ProductID: "basic", Months: 6, Quantity: 2},
	})
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)
	assert.Equal(t, "basic", q.Lines[0].ProductID)
	assert.Equal(t, int64(5400), q.TotalCents)
}

func TestQuoteClampsMonthsAndQuantity(t *testing.T) {
	svc := NewQuoteService(testCatalog(t), "usd")

	q, err := svc.Build(context.Background(), []domain.CartLine{
		{ProductID: "basic", Months: 0, Quantity: -4},
	})
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)
	assert.Equal(t, 1, q.Lines[0].Months)
	assert.Equal(t, 1, q.Lines[0].Quantity)
	assert.Equal(t, int64(500), q.TotalCents)
}

func TestQuoteTotalIsSumOfRoundedLines(t *testing.T) {
	svc := NewQuoteService(testCatalog(t), "usd")

	// 199*3*0.95 = 567.15 -> 567 per unit; three units = 1701, not round(1701.45).
	q, err := svc.Build(context.Background(), []domain.CartLine{{ProductID: "odd", Months: 3, Quantity: 3}})
	require.NoError(t, err)
	assert.Equal(t, int64(567), q.Lines[0].UnitAmountCents)
	assert.Equal(t, int64(1701), q.TotalCents)
}

func TestQuoteEmptyAndInvalid(t *testing.T) {
	svc := NewQuoteService(testCatalog(t), "usd")

	q, err := svc.Build(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, q.Lines)
	assert.Zero(t, q.TotalCents)

	tooMany := make([]domain.CartLine, 51)
	for i := range tooMany {
		tooMany[i] = domain.CartLine{ProductID: "basic", Months: 1, Quantity: 1}
	}
	_, err = svc.Build(context.Background(), tooMany)
	assert.Equal(t, domain.CodeInvalidRequest, domain.ErrorCode(err))
}

func TestQuoteClampsOversizedLines(t *testing.T) {
	svc := NewQuoteService(testCatalog(t), "usd")

	q, err := svc.Build(context.Background(), []domain.CartLine{
		{ProductID: "basic", Months: 121, Quantity: 1},
		{ProductID: "basic", Months: 1, Quantity: 101},
	})
	require.NoError(t, err)
	require.Len(t, q.Lines, 2)
	assert.Equal(t, domain.MaxLineMonths, q.Lines[0].Months)
	assert.Equal(t, domain.MaxLineQuantity, q.Lines[1].Quantity)
	assert.Equal(t, int64(500*domain.MaxLineQuantity), q.Lines[1].LineAmountCents)
}
