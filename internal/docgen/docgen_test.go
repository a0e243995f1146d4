package docgen

import (
	"bytes"
	"math"
	"testing"
	"time"
)

func TestMonthlyPayment(t *testing.T) {
	// 900000 financed over 240 months at 12% annual.
	got := MonthlyPayment(900000, 240)
	want := 900000 * (0.01 / (1 - math.Pow(1.01, -240)))
	if math.Abs(got-want) > 0.01 {
		t.Errorf("MonthlyPayment = %v, want %v", got, want)
	}
}

func TestFinancedAmount(t *testing.T) {
	if got := FinancedAmount(1000000); got != 900000 {
		t.Errorf("FinancedAmount(1000000) = %v, want 900000", got)
	}
}

func TestAmortizationSchedule(t *testing.T) {
	rows := Amortization(500000, 36)
	if len(rows) != 36 {
		t.Fatalf("expected 36 rows, got %d", len(rows))
	}

	financed := FinancedAmount(500000)
	if rows[0].OpeningBalance != financed {
		t.Errorf("first opening balance = %v, want %v", rows[0].OpeningBalance, financed)
	}

	// Fixed payment across all periods.
	for i, r := range rows {
		if math.Abs(r.Payment-rows[0].Payment) > 0.001 {
			t.Errorf("row %d payment %v differs from %v", i, r.Payment, rows[0].Payment)
		}
		if math.Abs(r.OpeningBalance-r.PrincipalPortion-r.ClosingBalance) > 0.01 {
			t.Errorf("row %d balances do not reconcile", i)
		}
	}

	// Final balance amortizes to zero.
	last := rows[len(rows)-1]
	if last.ClosingBalance > 0.01 {
		t.Errorf("final balance = %v, want 0", last.ClosingBalance)
	}

	// Balances strictly decrease.
	for i := 1; i < len(rows); i++ {
		if rows[i].OpeningBalance >= rows[i-1].OpeningBalance {
			t.Errorf("balance did not decrease at row %d", i)
		}
	}
}

func TestQuoteFilename(t *testing.T) {
	now := time.Date(2025, 3, 9, 14, 5, 0, 0, time.UTC)
	if got := QuoteFilename(now); got != "cotizacion-09032025-14-05.pdf" {
		t.Errorf("QuoteFilename = %q", got)
	}
}

func TestQuotePDF(t *testing.T) {
	content, err := QuotePDF("Cotización de crédito automotriz", 350000, 36)
	if err != nil {
		t.Fatalf("QuotePDF failed: %v", err)
	}
	if !bytes.HasPrefix(content, []byte("%PDF")) {
		t.Errorf("output does not look like a PDF: %q", content[:min(8, len(content))])
	}
}

func TestQuotePDFValidation(t *testing.T) {
	if _, err := QuotePDF("Cotización", 0, 36); err == nil {
		t.Error("expected error for zero price")
	}
	if _, err := QuotePDF("Cotización", 350000, 0); err == nil {
		t.Error("expected error for zero term")
	}
}

func TestStatementPDF(t *testing.T) {
	movements := [][2]string{
		{"Compra - WalMart Insurgentes", "-$2,333.00"},
		{"Pago Recibido (Gracias)", "$5,000.00"},
	}
	content, err := StatementPDF("Cliente Demo", "****4242", movements)
	if err != nil {
		t.Fatalf("StatementPDF failed: %v", err)
	}
	if !bytes.HasPrefix(content, []byte("%PDF")) {
		t.Error("output does not look like a PDF")
	}

	if _, err := StatementPDF("Cliente Demo", "****4242", nil); err == nil {
		t.Error("expected error for empty movements")
	}
}
