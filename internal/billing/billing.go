package billing

import (
	"math"
	"sort"
	"time"
)

// PackValidity is how long a granted minute pack stays usable.
const PackValidity = 30 * 24 * time.Hour

// BillableMinutes counts the whole minutes started between startedAt and now.
func BillableMinutes(startedAt, now time.Time) int {
	if !now.After(startedAt) {
		return 0
	}
	elapsed := now.Sub(startedAt)
	minutes := int(elapsed / time.Minute)
	if elapsed%time.Minute != 0 {
		minutes++
	}
	return minutes
}

// Cost returns minutes × pricePerMinute rounded to cents.
func Cost(minutes int, pricePerMinute float64) float64 {
	if minutes <= 0 || pricePerMinute <= 0 {
		return 0
	}
	return Round2(float64(minutes) * pricePerMinute)
}

// Round2 rounds v to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ToCents converts a decimal amount to minor units.
func ToCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// FromCents converts minor units to a decimal amount.
func FromCents(cents int64) float64 {
	return float64(cents) / 100
}

// Balance is the drawable state of one minute pack.
type Balance struct {
	PackID    int
	Remaining int
	ExpiresAt *time.Time
}

// Draw is the portion of a consumption taken from one pack.
type Draw struct {
	PackID    int
	Taken     int
	Remaining int
}

// Exhausted reports whether the pack has nothing left after the draw.
func (d Draw) Exhausted() bool {
	return d.Remaining == 0
}

// Allocate takes n minutes from packs, soonest expiry first, packs without
// expiry last. It returns the draws and the minutes that could not be covered.
func Allocate(packs []Balance, n int) ([]Draw, int) {
	if n <= 0 {
		return nil, 0
	}
	ordered := make([]Balance, len(packs))
	copy(ordered, packs)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].ExpiresAt, ordered[j].ExpiresAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})

	var draws []Draw
	left := n
	for _, p := range ordered {
		if left == 0 {
			break
		}
		if p.Remaining <= 0 {
			continue
		}
		take := p.Remaining
		if take > left {
			take = left
		}
		left -= take
		draws = append(draws, Draw{PackID: p.PackID, Taken: take, Remaining: p.Remaining - take})
	}
	return draws, left
}
