// Command checkout is a terminal storefront client. It tokenizes the card directly with Stripe,
// creates the subscription through the storefront server and walks any 3D Secure challenge.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/jordanlanch/storefront/pkg/billing"
	"github.com/jordanlanch/storefront/pkg/catalog"
	"github.com/jordanlanch/storefront/pkg/checkout"
	"github.com/jordanlanch/storefront/pkg/logger"
	"github.com/jordanlanch/storefront/pkg/pricing"
)

func main() {
	server := flag.String("server", "http://localhost:4242", "storefront server URL")
	products := flag.String("products", "", "comma separated price ids to buy")
	emailAddr := flag.String("email", "", "buyer email")
	cardNumber := flag.String("card", "", "card number")
	expiry := flag.String("exp", "", "card expiry as MM/YY")
	cvc := flag.String("cvc", "", "card security code")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	appLogger := logger.New(*logLevel)
	api := checkout.NewAPIClient(*server, 30*time.Second)

	setup, err := api.Setup(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to load the store: %v", err)
	}
	cat, err := checkout.CatalogFromSetup(setup)
	if err != nil {
		log.Fatalf("❌ Failed to load the store: %v", err)
	}

	view := &terminalView{out: os.Stdout}
	printCatalog(os.Stdout, cat)

	stripeAPI := billing.NewStripeAPI(cat.PublicKey())
	in := bufio.NewReader(os.Stdin)
	co, err := checkout.New(checkout.Config{
		Catalog:   cat,
		Tokenizer: checkout.NewStripeTokenizer(stripeAPI.PaymentMethods),
		API:       api,
		Handshake: checkout.NewHandshake(
			checkout.NewStripeAuthenticator(stripeAPI.PaymentIntents, promptChallenge(os.Stdout, in)),
			api,
			appLogger,
		),
		View:   view,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	for _, id := range strings.Split(*products, ",") {
		if id = strings.TrimSpace(id); id == "" {
			continue
		}
		if !co.Toggle(id) {
			fmt.Fprintf(os.Stdout, "Skipping unknown product %s\n", id)
		}
	}

	month, year, err := parseExpiry(*expiry)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	card := checkout.CardDetails{Number: *cardNumber, ExpMonth: month, ExpYear: year, CVC: *cvc}

	result, err := co.Submit(ctx, card, *emailAddr)
	if err != nil {
		os.Exit(1)
	}
	if result.Failed() {
		os.Exit(2)
	}
}

type terminalView struct {
	out io.Writer
}

func (v *terminalView) SummaryChanged(s pricing.Summary) {
	if s.Empty() {
		fmt.Fprintln(v.out, pricing.NoSelectionText)
		return
	}
	for _, li := range s.LineItems {
		fmt.Fprintf(v.out, "  %-24s %s\n", li.Title, pricing.FormatMonthly(li.UnitAmount))
	}
	if s.DiscountApplied {
		fmt.Fprintf(v.out, "  %-24s -%s\n", "Discount", pricing.FormatMonthly(s.Discount))
	}
	fmt.Fprintf(v.out, "  %-24s %s\n", "Total", pricing.FormatTotal(s))
}

func (v *terminalView) PaymentFormVisible(bool) {}

func (v *terminalView) SubmitEnabled(enabled bool) {
	if !enabled {
		fmt.Fprintln(v.out, "Processing payment...")
	}
}

func (v *terminalView) ShowError(message string) {
	fmt.Fprintf(v.out, "⚠️  %s\n", message)
}

// ClearError is empty: printed lines cannot be withdrawn, and the process exits after a decline.
func (v *terminalView) ClearError() {}

func (v *terminalView) OrderTerminal(t checkout.Terminal) {
	if t.Failed() {
		fmt.Fprintf(v.out, "❌ %s: %s\n", t.Status, t.Message)
		return
	}
	fmt.Fprintf(v.out, "✅ Subscription %s is %s\n", t.Subscription.ID, t.Status)
}

func printCatalog(w io.Writer, cat *catalog.Catalog) {
	for _, it := range cat.Items() {
		fmt.Fprintf(w, "%s %-24s %-12s %s\n", it.DisplayAsset, it.Title, pricing.FormatMonthly(it.UnitAmount), it.ID)
	}
	p := cat.Policy()
	fmt.Fprintf(w, "Buy %d or more products and save %.0f%%\n\n", p.MinQualifyingCount, p.Rate*100)
}

// promptChallenge asks the buyer to open the bank page and confirm when done.
func promptChallenge(w io.Writer, in *bufio.Reader) checkout.Challenger {
	return func(ctx context.Context, url string) error {
		fmt.Fprintf(w, "Your bank needs to confirm this payment. Open:\n  %s\nPress Enter when you are done.\n", url)
		done := make(chan error, 1)
		go func() {
			_, err := in.ReadString('\n')
			done <- err
		}()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-done:
			return err
		}
	}
}

func parseExpiry(s string) (month, year int64, err error) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expiry must be MM/YY, got %q", s)
	}
	month, err = strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid expiry month %q", parts[0])
	}
	year, err = strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil || year < 0 {
		return 0, 0, fmt.Errorf("invalid expiry year %q", parts[1])
	}
	if year < 100 {
		year += 2000
	}
	return month, year, nil
}
