package settings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"loyalty/models"
	"loyalty/pkg/dbtest"
)

type stubSource struct {
	row   *Settings
	err   error
	loads int
	saved []Settings
}

func (s *stubSource) Load(context.Context) (*Settings, error) {
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	if s.row == nil {
		return nil, ErrNotFound
	}
	c := s.row.clone()
	return &c, nil
}

func (s *stubSource) Save(_ context.Context, v Settings) error {
	s.saved = append(s.saved, v)
	s.row = &v
	return nil
}

func TestProviderCachesWithinTTL(t *testing.T) {
	row := Defaults()
	row.RequiredVisits = 3
	src := &stubSource{row: &row}
	p := NewProvider(src, time.Minute, nil)
	clock := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return clock }

	require.Equal(t, 3, p.Get(context.Background()).RequiredVisits)
	p.Get(context.Background())
	require.Equal(t, 1, src.loads)

	clock = clock.Add(2 * time.Minute)
	p.Get(context.Background())
	require.Equal(t, 2, src.loads)

	p.Invalidate()
	p.Get(context.Background())
	require.Equal(t, 3, src.loads)
}

func TestProviderFailsOpen(t *testing.T) {
	src := &stubSource{err: errors.New("connection refused")}
	p := NewProvider(src, time.Minute, nil)
	got := p.Get(context.Background())
	require.Equal(t, Defaults(), got)
	p.Get(context.Background())
	require.Equal(t, 2, src.loads, "errors must not be cached")

	missing := &stubSource{}
	p = NewProvider(missing, time.Minute, nil)
	require.Equal(t, Defaults(), p.Get(context.Background()))
	p.Get(context.Background())
	require.Equal(t, 1, missing.loads)
}

func TestProviderGetReturnsCopy(t *testing.T) {
	p := NewProvider(&stubSource{}, time.Minute, nil)
	s := p.Get(context.Background())
	s.AllowedTINs[0] = "tampered"
	require.Equal(t, "0003169685", p.Get(context.Background()).AllowedTINs[0])
}

func TestProviderUpdate(t *testing.T) {
	src := &stubSource{}
	p := NewProvider(src, time.Minute, nil)
	p.Get(context.Background())

	s := Defaults()
	s.AllowedTINs = []string{"000-316-968-5", "0003169685", "123 456 789"}
	s.RequiredVisits = 7
	out, err := p.Update(context.Background(), s, "admin")
	require.NoError(t, err)
	require.Equal(t, []string{"0003169685", "123456789"}, out.AllowedTINs)
	require.Equal(t, "admin", out.UpdatedBy)
	require.Equal(t, 7, p.Get(context.Background()).RequiredVisits)

	bad := Defaults()
	bad.DiscountPercent = 0
	_, err = p.Update(context.Background(), bad, "admin")
	require.ErrorIs(t, err, ErrInvalid)

	bad = Defaults()
	bad.AllowedTINs = []string{"n/a"}
	_, err = p.Update(context.Background(), bad, "admin")
	require.ErrorIs(t, err, ErrInvalid)

	bad = Defaults()
	bad.MinReceiptAmount = decimal.NewFromInt(-1)
	_, err = p.Update(context.Background(), bad, "admin")
	require.ErrorIs(t, err, ErrInvalid)
	require.Len(t, src.saved, 1)
}

func TestIsTINAllowed(t *testing.T) {
	s := Defaults()
	require.True(t, IsTINAllowed(s, "000-316-968-5"))
	require.False(t, IsTINAllowed(s, "0003169686"))
	require.False(t, IsTINAllowed(s, ""))
}

func TestEffectiveRules(t *testing.T) {
	s := Defaults()
	require.Equal(t, StoreRules{MinAmount: s.MinReceiptAmount, ValidityHours: 24}, EffectiveRules(s, nil))

	lower := &models.Store{MinReceiptAmount: decimal.NewNullDecimal(decimal.NewFromInt(50))}
	require.True(t, EffectiveRules(s, lower).MinAmount.Equal(decimal.NewFromInt(100)))

	hours := 72
	higher := &models.Store{MinReceiptAmount: decimal.NewNullDecimal(decimal.NewFromInt(250)), ReceiptValidityHours: &hours}
	r := EffectiveRules(s, higher)
	require.True(t, r.MinAmount.Equal(decimal.NewFromInt(250)))
	require.Equal(t, 72, r.ValidityHours)
	require.Equal(t, 3, r.MaxAgeDays())

	require.Equal(t, 2, StoreRules{ValidityHours: 25}.MaxAgeDays())
}

func TestGormSourceRoundTrip(t *testing.T) {
	src := NewGormSource(dbtest.Open(t))
	ctx := context.Background()
	_, err := src.Load(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	s := Defaults()
	s.AllowedTINs = []string{"0003169685", "123456789"}
	s.MinReceiptAmount = decimal.RequireFromString("150.50")
	require.NoError(t, src.Save(ctx, s))
	s.RequiredVisits = 8
	require.NoError(t, src.Save(ctx, s))

	got, err := src.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"0003169685", "123456789"}, got.AllowedTINs)
	require.True(t, got.MinReceiptAmount.Equal(decimal.RequireFromString("150.5")))
	require.Equal(t, 8, got.RequiredVisits)
}
