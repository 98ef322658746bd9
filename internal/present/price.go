package present

import (
	"fmt"
	"strings"

	"github.com/hostwise/assistant/internal/domain"
)

// PopularPackIndex is the pack highlighted as the most popular.
const PopularPackIndex = 1

// PopularBadge is the label shown on the popular pack.
const PopularBadge = "Mais popular"

// FormatBRL formats cents as "R$ 12,90".
func FormatBRL(cents int) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%sR$ %d,%02d", sign, cents/100, cents%100)
}

// PricePerMessage formats priceInCents/credits in reais with two decimals
// and a comma separator. Packs without credits yield "".
func PricePerMessage(pack domain.CreditPack) string {
	if pack.Credits <= 0 {
		return ""
	}
	perMessage := float64(pack.PriceInCents) / float64(pack.Credits) / 100
	return "R$ " + strings.Replace(fmt.Sprintf("%.2f", perMessage), ".", ",", 1)
}

// IsPopular reports whether the pack gets the popular badge.
func IsPopular(pack domain.CreditPack) bool {
	return pack.Index == PopularPackIndex
}
