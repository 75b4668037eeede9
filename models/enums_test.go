package models_test

import (
	"testing"
	"time"

	"github.com/graintrack/mill_backend/models"
	"github.com/shopspring/decimal"
)

func TestStockReferenceTypeDirection(t *testing.T) {
	cases := []struct {
		ref      models.StockReferenceType
		expected models.TransactionDirection
	}{
		{models.StockReferenceTypeInward, models.TransactionDirectionCredit},
		{models.StockReferenceTypePurchase, models.TransactionDirectionCredit},
		{models.StockReferenceTypeOutward, models.TransactionDirectionDebit},
		{models.StockReferenceTypeSale, models.TransactionDirectionDebit},
	}
	for _, tc := range cases {
		dir, err := tc.ref.Direction()
		if err != nil {
			t.Fatalf("Direction(%s) error: %v", tc.ref, err)
		}
		if dir != tc.expected {
			t.Fatalf("Direction(%s) expected %s, got %s", tc.ref, tc.expected, dir)
		}
	}

	// manual entries carry their own direction; the type has none
	if _, err := models.StockReferenceTypeManual.Direction(); err == nil {
		t.Fatalf("Direction(Manual) expected an error")
	}
}

func TestQuintalsFromKg(t *testing.T) {
	cases := []struct {
		kg       string
		expected string
	}{
		{"150", "1.5"},
		{"100", "1"},
		{"0", "0"},
		{"12345.6", "123.456"},
		{"2575.25", "25.7525"},
	}
	for _, tc := range cases {
		kg, err := decimal.NewFromString(tc.kg)
		if err != nil {
			t.Fatalf("bad fixture %q: %v", tc.kg, err)
		}
		got := models.QuintalsFromKg(kg)
		if got.String() != tc.expected {
			t.Fatalf("QuintalsFromKg(%s) expected %s, got %s", tc.kg, tc.expected, got.String())
		}
	}
}

func TestParseDateString(t *testing.T) {
	d, err := models.ParseDateString("2026-01-15")
	if err != nil {
		t.Fatalf("ParseDateString: %v", err)
	}
	got := time.Time(*d)
	if got.Year() != 2026 || got.Month() != time.January || got.Day() != 15 {
		t.Fatalf("unexpected parse result: %s", got)
	}

	d, err = models.ParseDateString("")
	if err != nil || d != nil {
		t.Fatalf("empty string must parse to nil, got %v / %v", d, err)
	}

	if _, err := models.ParseDateString("15/01/2026"); err == nil {
		t.Fatalf("expected an error for unsupported layout")
	}
}

func TestDayBoundsUTC(t *testing.T) {
	// 2026-01-15 in Asia/Kolkata (UTC+05:30):
	// start of day = 2026-01-14T18:30:00Z, end of day = 2026-01-15T18:29:59.999Z
	start := models.DateString(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	if err := start.StartOfDayUTCTime("Asia/Kolkata"); err != nil {
		t.Fatalf("StartOfDayUTCTime: %v", err)
	}
	expStart := time.Date(2026, 1, 14, 18, 30, 0, 0, time.UTC)
	if !time.Time(start).Equal(expStart) {
		t.Fatalf("expected start %s, got %s", expStart, time.Time(start))
	}

	end := models.DateString(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	if err := end.EndOfDayUTCTime("Asia/Kolkata"); err != nil {
		t.Fatalf("EndOfDayUTCTime: %v", err)
	}
	expEnd := time.Date(2026, 1, 15, 18, 29, 59, int(999*time.Millisecond), time.UTC)
	if !time.Time(end).Equal(expEnd) {
		t.Fatalf("expected end %s, got %s", expEnd, time.Time(end))
	}
}

func TestDayBoundsNilReceiver(t *testing.T) {
	var d *models.DateString
	if err := d.StartOfDayUTCTime("Asia/Kolkata"); err != nil {
		t.Fatalf("nil receiver must be a no-op, got %v", err)
	}
	if err := d.EndOfDayUTCTime("Asia/Kolkata"); err != nil {
		t.Fatalf("nil receiver must be a no-op, got %v", err)
	}
}
