package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ShortWallet renders 0x1234…abcd for hex addresses, other values are returned as is
func ShortWallet(walletAddress string) string {
	if strings.HasPrefix(walletAddress, "0x") && len(walletAddress) > 10 {
		return fmt.Sprintf("%s…%s", walletAddress[:6], walletAddress[len(walletAddress)-4:])
	}
	return walletAddress
}

// FormatUSD formats with thousands separators and two decimals, dropping a trailing .00
func FormatUSD(amount decimal.Decimal) string {
	s := amount.Abs().StringFixed(2)
	intPart, decPart := splitOnce(s, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if decPart != "" && decPart != "00" {
		b.WriteByte('.')
		b.WriteString(decPart)
	}
	return b.String()
}

// FormatPrice keeps at most four decimals and trims trailing zeros
func FormatPrice(price decimal.Decimal) string {
	s := price.StringFixed(4)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	return s
}

// FormatAmountWithSuffix abbreviates large amounts as 1.25K / 3.40M
func FormatAmountWithSuffix(amount decimal.Decimal) string {
	f, _ := amount.Float64()
	switch {
	case f >= 1_000_000:
		return fmt.Sprintf("%.2fM", f/1_000_000)
	case f >= 1_000:
		return fmt.Sprintf("%.2fK", f/1_000)
	}
	return amount.Truncate(2).String()
}

// splitOnce splits s on the first sep, decPart is empty when sep is absent
func splitOnce(s, sep string) (intPart, decPart string) {
	if idx := strings.Index(s, sep); idx != -1 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}
