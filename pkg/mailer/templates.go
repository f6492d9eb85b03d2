package mailer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// OrderSummary carries the fields rendered into the confirmation email.
type OrderSummary struct {
	OrderID       string
	CustomerName  string
	CustomerEmail string
	Currency      string
	Subtotal      decimal.Decimal
	Shipping      decimal.Decimal
	Total         decimal.Decimal
	Lines         []OrderLine
}

// OrderLine is one snapshotted item row in the confirmation email.
type OrderLine struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// BuildOrderConfirmation renders the plain-text confirmation sent right
// after an order commits.
func BuildOrderConfirmation(summary OrderSummary) Message {
	var b strings.Builder
	name := summary.CustomerName
	if name == "" {
		name = "customer"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "Thanks for your order %s. Here is what you bought:\n\n", summary.OrderID)
	for _, line := range summary.Lines {
		fmt.Fprintf(&b, "  %dx %s @ %s %s = %s %s\n",
			line.Quantity, line.Name,
			line.UnitPrice.StringFixed(2), summary.Currency,
			line.LineTotal.StringFixed(2), summary.Currency)
	}
	fmt.Fprintf(&b, "\nSubtotal: %s %s\n", summary.Subtotal.StringFixed(2), summary.Currency)
	fmt.Fprintf(&b, "Shipping: %s %s\n", summary.Shipping.StringFixed(2), summary.Currency)
	fmt.Fprintf(&b, "Total:    %s %s\n", summary.Total.StringFixed(2), summary.Currency)
	b.WriteString("\nWe will email you again when your order ships.\n")

	return Message{
		To:       summary.CustomerEmail,
		ToName:   summary.CustomerName,
		Subject:  fmt.Sprintf("Order %s confirmed", summary.OrderID),
		TextBody: b.String(),
	}
}

// BuildAccountActivation renders the email inviting a guest shopper to claim
// the account provisioned during checkout. activationURL already embeds the
// signed token.
func BuildAccountActivation(email, name, activationURL string) Message {
	if name == "" {
		name = "there"
	}
	body := fmt.Sprintf(
		"Hi %s,\n\nAn account was created for you while placing your order.\n"+
			"Set a password to track your orders and check out faster next time:\n\n  %s\n\n"+
			"If you did not place this order you can ignore this email.\n",
		name, activationURL)

	return Message{
		To:       email,
		ToName:   name,
		Subject:  "Finish setting up your account",
		TextBody: body,
	}
}
