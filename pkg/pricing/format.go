package pricing

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NoSelectionText is shown instead of a total when nothing is selected.
const NoSelectionText = "No products selected"

var printer = message.NewPrinter(language.AmericanEnglish)

// WholeUnits rounds minor units half-up to whole currency units.
func WholeUnits(minor int64) int64 {
	if minor < 0 {
		return -WholeUnits(-minor)
	}
	return (minor + 50) / 100
}

// FormatMonthly renders an amount as "$1,200/mo".
func FormatMonthly(minor int64) string {
	return printer.Sprintf("$%d/mo", WholeUnits(minor))
}

// FormatTotal renders the summary total, or NoSelectionText for an empty summary.
func FormatTotal(s Summary) string {
	if s.Empty() {
		return NoSelectionText
	}
	return FormatMonthly(s.Total)
}
