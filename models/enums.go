package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultTimezone = "Asia/Kolkata"

type Commodity string

const (
	CommodityPaddy Commodity = "Paddy"
	CommodityRice  Commodity = "Rice"
	CommodityGunny Commodity = "Gunny"
	CommodityFRK   Commodity = "FRK"
	CommodityBran  Commodity = "Bran"
)

func (c Commodity) IsValid() bool {
	switch c {
	case CommodityPaddy, CommodityRice, CommodityGunny, CommodityFRK, CommodityBran:
		return true
	}
	return false
}

type TransactionDirection string

const (
	TransactionDirectionCredit TransactionDirection = "CREDIT"
	TransactionDirectionDebit  TransactionDirection = "DEBIT"
)

func (d TransactionDirection) IsValid() bool {
	return d == TransactionDirectionCredit || d == TransactionDirectionDebit
}

type StockReferenceType string

const (
	StockReferenceTypeInward   StockReferenceType = "InwardEntry"
	StockReferenceTypeOutward  StockReferenceType = "OutwardEntry"
	StockReferenceTypePurchase StockReferenceType = "PurchaseDeal"
	StockReferenceTypeSale     StockReferenceType = "SaleDeal"
	StockReferenceTypeManual   StockReferenceType = "Manual"
)

// Direction returns the ledger direction a source document posts with.
// Inward/purchase bring stock in; outward/sale take stock out.
func (t StockReferenceType) Direction() (TransactionDirection, error) {
	switch t {
	case StockReferenceTypeInward, StockReferenceTypePurchase:
		return TransactionDirectionCredit, nil
	case StockReferenceTypeOutward, StockReferenceTypeSale:
		return TransactionDirectionDebit, nil
	}
	return "", fmt.Errorf("no posting direction for reference type %q", string(t))
}

// QuintalsFromKg converts a weighbridge reading in kilograms to quintals.
// 1 quintal = 100 kg.
func QuintalsFromKg(kg decimal.Decimal) decimal.Decimal {
	return kg.Div(decimal.NewFromInt(100))
}

type DateString time.Time

func (t DateString) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Time(t).Format("2006-01-02T15:04:05Z07:00"))), nil
}

// Parse the string into time.Time object.
// Accepts plain dates ("2006-01-02") and local datetimes ("2006-01-02T15:04:05").
func (t *DateString) UnmarshalJSON(data []byte) error {
	str, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.New("date must be string")
	}
	str = strings.TrimSpace(str)

	layouts := []string{"2006-01-02", "2006-01-02T15:04:05", "2006-01-02T15:04:05Z07:00"}
	for _, layout := range layouts {
		localTime, err := time.Parse(layout, str)
		if err == nil {
			*t = DateString(localTime)
			return nil
		}
	}
	return errors.New("error parsing datetime")
}

// ParseDateString parses query-string dates in the same formats UnmarshalJSON accepts.
func ParseDateString(str string) (*DateString, error) {
	str = strings.TrimSpace(str)
	if str == "" {
		return nil, nil
	}
	var t DateString
	if err := t.UnmarshalJSON([]byte(strconv.Quote(str))); err != nil {
		return nil, err
	}
	return &t, nil
}

// Value implements the driver.Valuer interface
func (t DateString) Value() (driver.Value, error) {
	return time.Time(t), nil
}

// Scan implements the sql.Scanner interface
func (t *DateString) Scan(value interface{}) error {
	if value == nil {
		*t = DateString(time.Time{})
		return nil
	}
	switch v := value.(type) {
	case time.Time:
		*t = DateString(v)
	default:
		return fmt.Errorf("cannot convert %T to DateString", value)
	}
	return nil
}

func (t *DateString) StartOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = DefaultTimezone
	}

	// Load the location for the given timezone
	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return err
	}

	// Convert the start of the day local time to the specified timezone
	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		0, 0, 0, 0,
		location,
	)

	// Convert the time to UTC
	utcTime := localTimeInZone.In(time.UTC)
	*t = DateString(utcTime)

	return nil
}

func (t *DateString) EndOfDayUTCTime(timezone string) error {
	// do nothing if the pointer is nil
	if t == nil {
		return nil
	}

	localTime := time.Time(*t)

	if timezone == "" {
		timezone = DefaultTimezone
	}

	// Load the location for the given timezone
	location, err := time.LoadLocation(timezone)
	if err != nil {
		fmt.Println("Error loading location:", err)
		return err
	}

	// Convert the end of the day local time to the specified timezone
	localTimeInZone := time.Date(
		localTime.Year(), localTime.Month(), localTime.Day(),
		23, 59, 59, int(999*time.Millisecond), // 23:59:59.999
		location,
	)

	// Convert the time to UTC
	utcTime := localTimeInZone.In(time.UTC)
	*t = DateString(utcTime)

	return nil
}
