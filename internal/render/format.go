// Package render formats numbers, times and tables for chat replies.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Money formats v as US dollars with thousands separators: $1,234.56, -$5.00
func Money(v float64) string {
	return money(v, 2)
}

// Price formats v like Money but keeps significant digits for sub-dollar values,
// e.g. $0.00001234
func Price(v float64) string {
	abs := math.Abs(v)
	if abs == 0 || abs >= 1 {
		return money(v, 2)
	}
	// Enough decimals for four significant digits.
	digits := int(math.Ceil(-math.Log10(abs))) + 3
	if digits > 12 {
		digits = 12
	}
	return money(v, digits)
}

func money(v float64, digits int) string {
	s := strconv.FormatFloat(math.Abs(v), 'f', digits, 64)
	whole, frac, _ := strings.Cut(s, ".")

	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		n = 0
	}

	result := "$" + humanize.Comma(n)
	if frac != "" {
		result += "." + frac
	}
	if v < 0 && s != strconv.FormatFloat(0, 'f', digits, 64) {
		result = "-" + result
	}
	return result
}

// Percent formats v (already scaled to percent) with two decimals: 1.23%
func Percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

// Number formats n with thousands separators
func Number(n int64) string {
	return humanize.Comma(n)
}

// Decimal formats f with thousands separators and at most digits decimals
func Decimal(f float64, digits int) string {
	return humanize.CommafWithDigits(f, digits)
}

// RelativeTime describes t relative to now, e.g. "5 minutes from now" or "2 hours ago"
func RelativeTime(t, now time.Time) string {
	return humanize.RelTime(t, now, "ago", "from now")
}

// DiscordTimestamp renders t with Discord's timestamp markup so each reader
// sees it in their own locale. style is one of t, T, d, D, f, F, R.
func DiscordTimestamp(t time.Time, style string) string {
	return fmt.Sprintf("<t:%d:%s>", t.Unix(), style)
}

// Quote prefixes every line of s with a Markdown block quote marker
func Quote(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "> " + line
	}
	return strings.Join(lines, "\n")
}

// CodeBlock wraps s in a fenced code block
func CodeBlock(s string) string {
	return "```\n" + s + "\n```"
}

// Field is one name/value pair of a summary card
type Field struct {
	Name   string
	Value  string
	Inline bool
}
