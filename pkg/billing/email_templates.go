package billing

import (
	"fmt"
	"html"
	"strings"

	"github.com/jordanlanch/storefront/pkg/pricing"
)

// buildReceiptEmail returns the email content for a newly active subscription.
func buildReceiptEmail(storeName string, titles []string, amountDue int64, couponApplied bool) (subject, htmlBody, plainText string) {
	subject = fmt.Sprintf("Your %s subscription is active", storeName)

	amount := pricing.FormatMonthly(amountDue)
	discountNote := ""
	if couponApplied {
		discountNote = "Your volume discount has been applied."
	}

	var items strings.Builder
	for _, t := range titles {
		fmt.Fprintf(&items, "<li>%s</li>", html.EscapeString(t))
	}

	htmlBody = fmt.Sprintf(`
		<html>
		<body>
			<h2>Thanks for subscribing!</h2>
			<p>Your subscription includes:</p>
			<ul>%s</ul>
			<p>First invoice: <strong>%s</strong></p>
			<p>%s</p>
			<p>Thanks,<br>The %s Team</p>
		</body>
		</html>
	`, items.String(), amount, discountNote, html.EscapeString(storeName))

	plainText = fmt.Sprintf(`Thanks for subscribing!

Your subscription includes:
- %s

First invoice: %s
%s

Thanks,
The %s Team
`, strings.Join(titles, "\n- "), amount, discountNote, storeName)

	return
}
