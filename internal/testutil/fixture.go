package testutil

import "github.com/roach88/warden/internal/ir"

// OrdersYAML is the orders feature in the canonical file layout.
const OrdersYAML = `feature: orders
initial_state: Pending
states:
  Pending:
    description: awaiting confirmation
  Confirmed: {}
  Delivered:
    terminal: true
transitions:
  - from: Pending
    to: Confirmed
  - from: Confirmed
    to: Delivered
`

// OrdersFeature returns the spec OrdersYAML decodes to.
func OrdersFeature() *ir.FeatureSpec {
	return &ir.FeatureSpec{
		Name:         "orders",
		InitialState: "Pending",
		States: []ir.StateDef{
			{Name: "Pending", Description: "awaiting confirmation"},
			{Name: "Confirmed"},
			{Name: "Delivered", Terminal: true},
		},
		Transitions: []ir.TransitionDef{
			{From: "Pending", To: "Confirmed"},
			{From: "Confirmed", To: "Delivered"},
		},
	}
}

// PaymentFeature has a refund loop and a reversible step, which the
// guard needs for successful rollbacks.
func PaymentFeature() *ir.FeatureSpec {
	return &ir.FeatureSpec{
		Name:         "payment",
		InitialState: "Idle",
		States: []ir.StateDef{
			{Name: "Idle"},
			{Name: "Processing"},
			{Name: "Paid"},
			{Name: "Failed"},
			{Name: "Refunded", Terminal: true},
		},
		Transitions: []ir.TransitionDef{
			{From: "Idle", To: "Processing"},
			{From: "Processing", To: "Idle"},
			{From: "Processing", To: "Paid"},
			{From: "Processing", To: "Failed"},
			{From: "Failed", To: "Idle"},
			{From: "Paid", To: "Refunded"},
		},
	}
}
