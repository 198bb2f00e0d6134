package domain

import "time"

// Duration tiers, longest first. The first tier whose MinMonths is reached wins.
var discountTiers = []struct {
	MinMonths int
	Percent   int64
}{
	{MinMonths: 12, Percent: 80},
	{MinMonths: 6, Percent: 90},
	{MinMonths: 3, Percent: 95},
}

// DiscountPercent returns the share of the undiscounted price charged for a
// purchase of the given length.
func DiscountPercent(months int) int64 {
	for _, tier := range discountTiers {
		if months >= tier.MinMonths {
			return tier.Percent
		}
	}
	return 100
}

// PriceForMonths returns the price in minor units of one unit bought for
// months months, rounded half-up to a whole minor unit.
// Callers must pass positive values.
func PriceForMonths(monthlyPriceCents int64, months int) int64 {
	base := monthlyPriceCents * int64(months)
	return (base*DiscountPercent(months) + 50) / 100
}

// AddMonths advances t by n calendar months in UTC. The day of month is
// clamped to the last day of the target month (Jan 31 + 1 month = Feb 28 or
// Feb 29), and the time of day is preserved.
func AddMonths(t time.Time, n int) time.Time {
	t = t.UTC()
	year, month, day := t.Date()

	// Normalise through the first of the month so AddDate cannot overflow.
	first := time.Date(year, month, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	target := first.AddDate(0, n, 0)

	if last := daysIn(target.Year(), target.Month()); day > last {
		day = last
	}
	return target.AddDate(0, 0, day-1)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
