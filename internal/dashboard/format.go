// Package dashboard holds presentation helpers shared by the terminal UI and
// the CLI: number formatting, rating intensity and note grouping.
package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NA is shown for absent values.
const NA = "N/A"

// FormatInt formats an integer with comma separators.
func FormatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	if len(s) <= 3 {
		if neg {
			return "-" + s
		}
		return s
	}
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	start := len(s) % 3
	if start > 0 {
		b.WriteString(s[:start])
	}
	for i := start; i < len(s); i += 3 {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// PriceDecimals returns how many decimals a price of magnitude p is shown
// with: 3 - ceil(|log10 |p||), clamped to [0, 10].
func PriceDecimals(p float64) int {
	abs := math.Abs(p)
	if abs == 0 {
		return 2
	}
	d := 3 - int(math.Ceil(math.Abs(math.Log10(abs))))
	return min(10, max(0, d))
}

// FormatPrice formats a price with magnitude-dependent precision.
func FormatPrice(p *float64) string {
	if p == nil {
		return NA
	}
	return decimal.NewFromFloat(*p).StringFixed(int32(PriceDecimals(*p)))
}

// FormatMarketCap formats a market cap with T/B/M/K suffixes and one
// decimal, or N/A for an absent or zero value.
func FormatMarketCap(v *float64) string {
	if v == nil || *v == 0 {
		return NA
	}
	d := decimal.NewFromFloat(*v)
	abs := math.Abs(*v)
	switch {
	case abs >= 1e12:
		return "$" + d.Shift(-12).StringFixed(1) + "T"
	case abs >= 1e9:
		return "$" + d.Shift(-9).StringFixed(1) + "B"
	case abs >= 1e6:
		return "$" + d.Shift(-6).StringFixed(1) + "M"
	case abs >= 1e3:
		return "$" + d.Shift(-3).StringFixed(1) + "K"
	}
	return "$" + d.String()
}

// FormatPercent formats a percentage with an explicit plus sign for gains.
func FormatPercent(v *float64, decimals int) string {
	if v == nil {
		return NA
	}
	sign := ""
	if *v > 0 {
		sign = "+"
	}
	return sign + decimal.NewFromFloat(*v).StringFixed(int32(decimals)) + "%"
}

// FormatNumber formats v with fixed decimals, or N/A.
func FormatNumber(v *float64, decimals int) string {
	if v == nil {
		return NA
	}
	return decimal.NewFromFloat(*v).StringFixed(int32(decimals))
}

// FormatYear returns the calendar year of t, or N/A.
func FormatYear(t *time.Time) string {
	if t == nil {
		return NA
	}
	return fmt.Sprintf("%d", t.Year())
}

// FormatMonth formats t as "Jan 2024".
func FormatMonth(t time.Time) string {
	return t.Format("Jan 2006")
}

// FormatDay formats t as "Jan 2, 2024".
func FormatDay(t time.Time) string {
	return t.Format("Jan 2, 2006")
}

// FormatRating formats a rating with sign, or "-" when unrated.
func FormatRating(r *int) string {
	switch {
	case r == nil:
		return "-"
	case *r > 0:
		return fmt.Sprintf("+%d", *r)
	}
	return fmt.Sprintf("%d", *r)
}

// RatingLevel grades a -5..+5 rating into -3..3 for colouring: 3 when the
// intensity |r|/5 exceeds 0.6, 2 above 0.3, 1 otherwise, signed by r. Zero
// stays 0.
func RatingLevel(r int) int {
	if r == 0 {
		return 0
	}
	intensity := math.Min(math.Abs(float64(r))/5, 1)
	level := 1
	switch {
	case intensity > 0.6:
		level = 3
	case intensity > 0.3:
		level = 2
	}
	if r < 0 {
		return -level
	}
	return level
}

// PadOrTrunc pads s with spaces or truncates it with "…" to width runes.
func PadOrTrunc(s string, width int) string {
	r := []rune(s)
	if len(r) > width {
		if width <= 1 {
			return string(r[:width])
		}
		return string(r[:width-1]) + "…"
	}
	return s + strings.Repeat(" ", width-len(r))
}
