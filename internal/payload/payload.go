// Package payload synthesizes randomized payment request bodies.
//
// A [Generator] draws every field independently from fixed distributions:
//   - amount: 80% small (10-200), 15% medium (200-1000), 5% large (1000-6000)
//   - currency: EUR 50%, USD 25%, GBP 15%, CHF 7%, JPY 3%
//   - customer: 20% from 100 returning customers, 80% from a pool of 5000
//   - type: standard 70%, express 20%, recurring 10%
//
// The randomness source is injected so a fixed seed reproduces the same
// payment sequence.
package payload

import (
	"fmt"
	"math"
	"math/rand"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyCHF Currency = "CHF"
	CurrencyJPY Currency = "JPY"
)

type PaymentType string

const (
	PaymentTypeStandard  PaymentType = "standard"
	PaymentTypeExpress   PaymentType = "express"
	PaymentTypeRecurring PaymentType = "recurring"
)

// Payment is the JSON body posted to the payment endpoint.
type Payment struct {
	Amount     float64     `json:"amount"`
	Currency   Currency    `json:"currency"`
	CustomerID string      `json:"customerId"`
	Type       PaymentType `json:"type"`
}

const (
	returningCustomers = 100
	totalCustomers     = 5000
	returningShare     = 0.20
)

type amountBand struct {
	upTo     float64 // cumulative probability bound
	min, max float64
}

var amountBands = []amountBand{
	{upTo: 0.80, min: 10, max: 200},
	{upTo: 0.95, min: 200, max: 1000},
	{upTo: 1.00, min: 1000, max: 6000},
}

var currencyChoices = weighted[Currency]{
	{CurrencyUSD, 25},
	{CurrencyEUR, 50},
	{CurrencyGBP, 15},
	{CurrencyCHF, 7},
	{CurrencyJPY, 3},
}

var paymentTypeChoices = weighted[PaymentType]{
	{PaymentTypeStandard, 70},
	{PaymentTypeExpress, 20},
	{PaymentTypeRecurring, 10},
}

// Generator produces payments from an injected random source.
// It is not safe for concurrent use; callers generate from a single goroutine.
type Generator struct {
	rnd *rand.Rand
}

// NewGenerator returns a Generator drawing from rnd. A nil rnd is seeded with 1.
func NewGenerator(rnd *rand.Rand) *Generator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(1))
	}
	return &Generator{rnd: rnd}
}

// Generate returns a fresh payment.
func (g *Generator) Generate() Payment {
	return Payment{
		Amount:     g.amount(),
		Currency:   currencyChoices.pick(g.rnd),
		CustomerID: g.customer(),
		Type:       paymentTypeChoices.pick(g.rnd),
	}
}

func (g *Generator) amount() float64 {
	u := g.rnd.Float64()
	band := amountBands[len(amountBands)-1]
	for _, b := range amountBands {
		if u < b.upTo {
			band = b
			break
		}
	}
	return RoundCents(uniform(g.rnd, band.min, band.max))
}

func (g *Generator) customer() string {
	pool := totalCustomers
	if g.rnd.Float64() < returningShare {
		pool = returningCustomers
	}
	return CustomerID(g.rnd.Intn(pool) + 1)
}

// CustomerID formats a customer number as cust_NNNNN.
func CustomerID(n int) string {
	return fmt.Sprintf("cust_%05d", n)
}

// RoundCents rounds v to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func uniform(rnd *rand.Rand, min, max float64) float64 {
	return min + rnd.Float64()*(max-min)
}

type choice[T any] struct {
	value  T
	weight int
}

type weighted[T any] []choice[T]

func (w weighted[T]) pick(rnd *rand.Rand) T {
	total := 0
	for _, c := range w {
		total += c.weight
	}
	n := rnd.Intn(total)
	for _, c := range w {
		if n < c.weight {
			return c.value
		}
		n -= c.weight
	}
	return w[len(w)-1].value
}
