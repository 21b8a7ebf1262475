package common

import (
	"fmt"
	"strings"

	"creator-ledger-go/internal/money"

	"github.com/shopspring/decimal"
)

const (
	// Default separator widths
	DefaultWidth = 80
	WideWidth    = 100
)

// PrintSeparator prints a separator line with the specified character and width
func PrintSeparator(char string, width int) {
	fmt.Println(strings.Repeat(char, width))
}

// PrintSeparatorNewline prints a separator with a newline before it
func PrintSeparatorNewline(char string, width int) {
	fmt.Println("\n" + strings.Repeat(char, width))
}

// PrintHeader prints a formatted header with title and separators
func PrintHeader(title string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(title)
	PrintSeparator("=", width)
}

// PrintFooter prints a formatted footer with message and separators
func PrintFooter(message string, width int) {
	PrintSeparatorNewline("=", width)
	fmt.Println(message)
	fmt.Println(strings.Repeat("=", width) + "\n")
}

// PrintBoxSeparator prints a box-drawing separator line (for sub-sections)
func PrintBoxSeparator(width int) {
	fmt.Println("├" + strings.Repeat("─", width))
}

// BoxPrefix returns the appropriate box-drawing prefix for list items
func BoxPrefix(isLast bool) string {
	if isLast {
		return "└  "
	}
	return "│  "
}

// BoxDetailPrefix returns the prefix for detail lines under list items
func BoxDetailPrefix(isLast bool) string {
	if isLast {
		return "   "
	}
	return "│  "
}

// ShortId abbreviates a uuid or hash for tabular output
func ShortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}

// FormatMoney renders a fiat amount with its currency
func FormatMoney(amount decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s %s", money.FormatFiat(amount), currency)
}

// FormatOptionalMoney renders a possibly absent fiat amount
func FormatOptionalMoney(amount *decimal.Decimal, currency string) string {
	if amount == nil {
		return "-"
	}
	return FormatMoney(*amount, currency)
}

// FormatOptionalTokens renders a possibly absent token amount
func FormatOptionalTokens(tokens *uint64) string {
	if tokens == nil {
		return "-"
	}
	return fmt.Sprintf("%d tokens", *tokens)
}
