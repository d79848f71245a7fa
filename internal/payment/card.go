package payment

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidCardNumber = errors.New("Invalid card number")
	ErrCardExpired       = errors.New("Card has expired")
	ErrInvalidExpiry     = errors.New("Invalid card expiry date")
	ErrInvalidCVV        = errors.New("Invalid security code")
)

func normalizePAN(number string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(number)
}

// LuhnValid reports whether number passes the mod-10 check.
func LuhnValid(number string) bool {
	pan := normalizePAN(number)
	if len(pan) < 12 || len(pan) > 19 {
		return false
	}

	sum := 0
	double := false
	for i := len(pan) - 1; i >= 0; i-- {
		c := pan[i]
		if c < '0' || c > '9' {
			return false
		}
		d := int(c - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

// expiry parses month and a two or four digit year.
func expiry(month, year string) (time.Month, int, error) {
	m, err := strconv.Atoi(strings.TrimSpace(month))
	if err != nil || m < 1 || m > 12 {
		return 0, 0, ErrInvalidExpiry
	}
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil || y < 0 {
		return 0, 0, ErrInvalidExpiry
	}
	if y < 100 {
		y += 2000
	}
	return time.Month(m), y, nil
}

// ValidateCard runs the local checks done before any network call. A card is
// usable through the last day of its expiry month.
func ValidateCard(card Card, now time.Time) error {
	if !LuhnValid(card.Number) {
		return ErrInvalidCardNumber
	}

	month, year, err := expiry(card.ExpiryMonth, card.ExpiryYear)
	if err != nil {
		return err
	}
	firstOfNext := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(firstOfNext) {
		return ErrCardExpired
	}

	if cvv := strings.TrimSpace(card.SecurityCode); cvv != "" {
		if len(cvv) < 3 || len(cvv) > 4 {
			return ErrInvalidCVV
		}
		if _, err := strconv.Atoi(cvv); err != nil {
			return ErrInvalidCVV
		}
	}
	return nil
}
