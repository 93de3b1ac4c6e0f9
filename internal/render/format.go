package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"docsign/internal/models"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter turns raw field values into locale-aware display strings.
type Formatter struct {
	tag        language.Tag
	printer    *message.Printer
	unit       currency.Unit
	symbol     string // CLDR symbol of unit in tag, e.g. "R$" for BRL in pt-BR
	dateLayout string
	loc        *time.Location
}

// NewFormatter builds a formatter for a BCP 47 locale, an ISO 4217 currency
// code and an IANA timezone.
func NewFormatter(locale, currencyCode, timezone string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", currencyCode, err)
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	printer := message.NewPrinter(tag)
	return &Formatter{
		tag:        tag,
		printer:    printer,
		unit:       unit,
		symbol:     printer.Sprint(currency.Symbol(unit)),
		dateLayout: dateLayoutFor(tag),
		loc:        loc,
	}, nil
}

// DefaultFormatter formats for Brazilian Portuguese and reais.
func DefaultFormatter() *Formatter {
	f, err := NewFormatter("pt-BR", "BRL", "America/Sao_Paulo")
	if err != nil {
		panic(err)
	}
	return f
}

func dateLayoutFor(tag language.Tag) string {
	base, _ := tag.Base()
	region, _ := tag.Region()
	switch base.String() {
	case "en":
		if region.String() == "US" || region.String() == "ZZ" {
			return "01/02/2006"
		}
		return "02/01/2006"
	case "de", "ru", "pl", "fi", "nb", "cs":
		return "02.01.2006"
	case "ja", "zh", "ko", "sv", "lt":
		return "2006-01-02"
	case "nl":
		return "02-01-2006"
	default:
		return "02/01/2006"
	}
}

// Format applies the field type's presentation rule. Values that cannot be
// interpreted are returned unchanged.
func (f *Formatter) Format(fieldType models.FieldType, raw string) string {
	switch fieldType {
	case models.FieldCurrency:
		if s, ok := f.Currency(raw); ok {
			return s
		}
		return raw
	case models.FieldDate:
		return f.Date(raw)
	case models.FieldText, models.FieldTextarea, models.FieldEmail, models.FieldPhone, models.FieldNumber:
		return raw
	}
	return raw
}

// Currency formats a numeric string as money, e.g. "1500.5" → "R$ 1.500,50".
func (f *Formatter) Currency(raw string) (string, bool) {
	v, ok := ParseAmount(raw)
	if !ok {
		return "", false
	}
	scale, _ := currency.Standard.Rounding(f.unit)
	amount := f.printer.Sprint(number.Decimal(math.Abs(v),
		number.MinFractionDigits(scale),
		number.MaxFractionDigits(scale),
	))
	if v < 0 {
		return "-" + f.symbol + " " + amount, true
	}
	return f.symbol + " " + amount, true
}

// Date formats an ISO date (2006-01-02) or an RFC 3339 timestamp with the
// locale's short layout. Anything else is returned unchanged.
func (f *Formatter) Date(raw string) string {
	s := strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t.Format(f.dateLayout)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(f.loc).Format(f.dateLayout)
	}
	return raw
}

// Today returns the current date in the formatter's timezone as 2006-01-02.
func (f *Formatter) Today(now time.Time) string {
	return now.In(f.loc).Format("2006-01-02")
}

func (f *Formatter) Location() *time.Location {
	return f.loc
}

// ParseAmount reads a decimal number written either with a dot decimal
// separator ("1500.5") or in Brazilian style ("1.500,50"). A leading currency
// symbol is ignored.
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	for _, sym := range []string{"R$", "US$", "$", "€", "£"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, sym))
	}
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, false
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
