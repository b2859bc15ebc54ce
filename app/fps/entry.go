package fps

import (
	"errors"
	"strings"
	"unicode"
)

const (
	numberLength = 26
	keyLength    = 2
	plateLength  = 4
	listSep      = ", "
)

var (
	ErrInvalidNumber = errors.New("fps_number must contain 26 digits")
	ErrInvalidKey    = errors.New("fps_key must be 2 characters and not 00")
	ErrInvalidPlate  = errors.New("license_plate must be 4 characters")
	ErrInvalidAmount = errors.New("amount must be > 0")
	ErrNoEntries     = errors.New("at least one fps entry is required")
)

// Entry is one fine as read from the payment notice.
type Entry struct {
	Number       string
	Key          string
	LicensePlate string
	Amount       int64
}

// Summary is the aggregated view of several entries carried in checkout metadata.
type Summary struct {
	Numbers       string
	Keys          string
	LicensePlates string
	Amount        int64
	Count         int
}

func NormalizeNumber(number string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, number)
}

func (e Entry) Validate() error {
	number := NormalizeNumber(e.Number)
	if len(number) != numberLength || strings.IndexFunc(number, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return ErrInvalidNumber
	}
	key := strings.TrimSpace(e.Key)
	if len(key) != keyLength || key == "00" {
		return ErrInvalidKey
	}
	if len(strings.TrimSpace(e.LicensePlate)) != plateLength {
		return ErrInvalidPlate
	}
	if e.Amount <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Summarize validates every entry and joins them in input order.
func Summarize(entries []Entry) (Summary, error) {
	if len(entries) == 0 {
		return Summary{}, ErrNoEntries
	}

	numbers := make([]string, 0, len(entries))
	keys := make([]string, 0, len(entries))
	plates := make([]string, 0, len(entries))
	var total int64
	for _, entry := range entries {
		if err := entry.Validate(); err != nil {
			return Summary{}, err
		}
		numbers = append(numbers, NormalizeNumber(entry.Number))
		keys = append(keys, strings.TrimSpace(entry.Key))
		plates = append(plates, strings.ToUpper(strings.TrimSpace(entry.LicensePlate)))
		total += entry.Amount
	}

	return Summary{
		Numbers:       strings.Join(numbers, listSep),
		Keys:          strings.Join(keys, listSep),
		LicensePlates: strings.Join(plates, listSep),
		Amount:        total,
		Count:         len(entries),
	}, nil
}
