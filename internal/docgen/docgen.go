// Package docgen renders the PDF documents the assistant sends to customers:
// credit quote amortization tables and account statement copies.
//
// Pages are described with pdfcpu's JSON create format and rendered in memory.
package docgen

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// Loan terms applied to every quote.
const (
	// DownPaymentRate is the required down payment fraction.
	DownPaymentRate = 0.10
	// AnnualRate is the yearly interest rate.
	AnnualRate = 0.12
	// VATRate is the IVA applied on top of interest.
	VATRate = 0.16
)

const (
	headerColor  = "#ed1629"
	oddRowColor  = "#f8f8f8"
	evenRowColor = "#ffffff"
)

// AmortizationRow is one period of the payment schedule.
type AmortizationRow struct {
	Period           int
	OpeningBalance   float64
	Payment          float64
	Interest         float64
	PrincipalPortion float64
	ClosingBalance   float64
}

// MonthlyPayment computes the fixed payment for a financed amount over the
// given number of monthly periods using the standard annuity formula.
func MonthlyPayment(financed float64, periods int) float64 {
	monthlyRate := AnnualRate / 12
	return financed * (monthlyRate / (1 - math.Pow(1+monthlyRate, -float64(periods))))
}

// FinancedAmount returns the price minus the required down payment.
func FinancedAmount(price float64) float64 {
	return price - price*DownPaymentRate
}

// Amortization builds the full payment schedule for a price and term.
func Amortization(price float64, periods int) []AmortizationRow {
	financed := FinancedAmount(price)
	payment := MonthlyPayment(financed, periods)
	monthlyRate := AnnualRate / 12

	rows := make([]AmortizationRow, 0, periods)
	balance := financed
	for i := 1; i <= periods; i++ {
		interest := balance * monthlyRate
		principal := payment - interest
		closing := balance - principal
		if closing < 0 {
			closing = 0
		}
		rows = append(rows, AmortizationRow{
			Period:           i,
			OpeningBalance:   balance,
			Payment:          payment,
			Interest:         interest,
			PrincipalPortion: principal,
			ClosingBalance:   closing,
		})
		balance = closing
	}
	return rows
}

// QuoteFilename names a quote PDF after its generation time.
func QuoteFilename(now time.Time) string {
	return fmt.Sprintf("cotizacion-%s.pdf", now.Format("02012006-15-04"))
}

// QuotePDF renders an amortization table for a credit quote. The title names
// the product, e.g. "Cotización de crédito hipotecario".
func QuotePDF(title string, price float64, periods int) ([]byte, error) {
	if price <= 0 {
		return nil, fmt.Errorf("quote price must be positive, got %v", price)
	}
	if periods <= 0 {
		return nil, fmt.Errorf("quote term must be positive, got %d", periods)
	}
	slog.Debug("docgen.QuotePDF rendering", "title", title, "price", price, "periods", periods)

	rows := Amortization(price, periods)
	values := make([][]string, 0, len(rows))
	for _, r := range rows {
		values = append(values, []string{
			fmt.Sprintf("%d", r.Period),
			money(r.OpeningBalance),
			money(r.Payment),
			money(r.Interest),
			money(r.PrincipalPortion),
			money(r.ClosingBalance),
		})
	}

	summary := fmt.Sprintf("Precio: %s   Enganche: %s   Monto financiado: %s   Tasa anual: %.0f%%   IVA: %.0f%%",
		money(price), money(price*DownPaymentRate), money(FinancedAmount(price)), AnnualRate*100, VATRate*100)

	page := pageContent{
		Text: []textBox{
			{Value: title, Anchor: "tc", Dy: 30, Font: &font{Name: "Helvetica-Bold", Size: 16, Color: headerColor}},
			{Value: summary, Anchor: "tc", Dy: 55, Font: &font{Name: "Helvetica", Size: 9}},
		},
		Table: []table{{
			Anchor:     "tc",
			Dy:         80,
			Width:      520,
			Rows:       len(values),
			Cols:       6,
			LineHeight: 14,
			Values:     values,
			Font:       &font{Name: "Helvetica", Size: 8},
			OddColor:   oddRowColor,
			EvenColor:  evenRowColor,
			Header: &tableHeader{
				Values:          []string{"#", "Saldo inicial", "Pago mensual", "Interés", "Abono a capital", "Saldo final"},
				BackgroundColor: headerColor,
				Font:            &font{Name: "Helvetica-Bold", Size: 8, Color: "#ffffff"},
			},
		}},
	}
	return render(page)
}

// StatementPDF renders an account statement copy from movement lines.
// Each movement is a description and a signed amount.
func StatementPDF(holder, account string, movements [][2]string) ([]byte, error) {
	if len(movements) == 0 {
		return nil, fmt.Errorf("statement requires at least one movement")
	}
	slog.Debug("docgen.StatementPDF rendering", "account", account, "movements", len(movements))

	values := make([][]string, 0, len(movements))
	for _, m := range movements {
		values = append(values, []string{m[0], m[1]})
	}
	page := pageContent{
		Text: []textBox{
			{Value: "Estado de cuenta", Anchor: "tc", Dy: 30, Font: &font{Name: "Helvetica-Bold", Size: 16, Color: headerColor}},
			{Value: fmt.Sprintf("Titular: %s   Cuenta: %s", holder, account), Anchor: "tc", Dy: 55, Font: &font{Name: "Helvetica", Size: 10}},
		},
		Table: []table{{
			Anchor:     "tc",
			Dy:         80,
			Width:      480,
			Rows:       len(values),
			Cols:       2,
			LineHeight: 16,
			Values:     values,
			Font:       &font{Name: "Helvetica", Size: 9},
			OddColor:   oddRowColor,
			EvenColor:  evenRowColor,
			Header: &tableHeader{
				Values:          []string{"Movimiento", "Monto"},
				BackgroundColor: headerColor,
				Font:            &font{Name: "Helvetica-Bold", Size: 9, Color: "#ffffff"},
			},
		}},
	}
	return render(page)
}

// render feeds a single-page descriptor through pdfcpu.
func render(content pageContent) ([]byte, error) {
	desc := document{
		Pages: map[string]page{"1": {Content: content}},
	}
	raw, err := json.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page descriptor: %w", err)
	}
	var buf bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(raw), &buf, nil); err != nil {
		slog.Error("docgen render failed", "error", err)
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}

// pdfcpu JSON create format shapes.

type document struct {
	Pages map[string]page `json:"pages"`
}

type page struct {
	Content pageContent `json:"content"`
}

type pageContent struct {
	Text  []textBox `json:"text,omitempty"`
	Table []table   `json:"table,omitempty"`
}

type textBox struct {
	Value  string `json:"value"`
	Anchor string `json:"anchor,omitempty"`
	Dx     int    `json:"dx,omitempty"`
	Dy     int    `json:"dy,omitempty"`
	Font   *font  `json:"font,omitempty"`
}

type table struct {
	Anchor     string       `json:"anchor,omitempty"`
	Dx         int          `json:"dx,omitempty"`
	Dy         int          `json:"dy,omitempty"`
	Width      float64      `json:"width,omitempty"`
	Rows       int          `json:"rows"`
	Cols       int          `json:"cols"`
	LineHeight int          `json:"lheight"`
	Values     [][]string   `json:"values"`
	Font       *font        `json:"font,omitempty"`
	OddColor   string       `json:"oddCol,omitempty"`
	EvenColor  string       `json:"evenCol,omitempty"`
	Header     *tableHeader `json:"header,omitempty"`
}

type tableHeader struct {
	Values          []string `json:"values"`
	BackgroundColor string   `json:"bgCol,omitempty"`
	Font            *font    `json:"font,omitempty"`
}

type font struct {
	Name  string  `json:"name"`
	Size  int     `json:"size"`
	Color string  `json:"col,omitempty"`
	Scale float64 `json:"scale,omitempty"`
}
