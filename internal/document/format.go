package document

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatYen renders 5000 as "¥5,000".
func FormatYen(n int) string {
	if n < 0 {
		return "-" + FormatYen(-n)
	}
	return message.NewPrinter(language.Japanese).Sprintf("¥%d", n)
}

// FormatMinutes renders a duration in minutes as "90分".
func FormatMinutes(n int) string {
	return strconv.Itoa(n) + "分"
}
