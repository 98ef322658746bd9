package present

import (
	"fmt"
	"strings"

	"github.com/hostwise/assistant/internal/domain"
)

// UsageLevel buckets the used share of the monthly allowance.
type UsageLevel string

const (
	UsageLow    UsageLevel = "low"
	UsageMedium UsageLevel = "medium"
	UsageHigh   UsageLevel = "high"
)

// UsagePercentage returns used/limit as a percentage, 0 when limit <= 0.
func UsagePercentage(q domain.UsageQuota) float64 {
	if q.Limit <= 0 {
		return 0
	}
	return float64(q.Used) / float64(q.Limit) * 100
}

// LevelFor maps a percentage to its level.
func LevelFor(percentage float64) UsageLevel {
	switch {
	case percentage < 50:
		return UsageLow
	case percentage < 80:
		return UsageMedium
	default:
		return UsageHigh
	}
}

// BarWidth is the percentage clamped to [0, 100].
func BarWidth(percentage float64) float64 {
	if percentage < 0 {
		return 0
	}
	if percentage > 100 {
		return 100
	}
	return percentage
}

// UsageBar renders a text progress bar of the given width.
func UsageBar(q domain.UsageQuota, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(BarWidth(UsagePercentage(q)) / 100 * float64(width))
	return "[" + strings.Repeat("#", filled) + strings.Repeat(".", width-filled) + "]"
}

// UsageSummary is the one-line badge text.
func UsageSummary(q domain.UsageQuota) string {
	s := fmt.Sprintf("%d/%d mensagens", q.Used, q.Limit)
	if q.BonusCredits > 0 {
		s += fmt.Sprintf(" (+%d créditos)", q.BonusCredits)
	}
	return s
}
