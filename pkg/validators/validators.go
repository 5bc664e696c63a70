// Package validators holds ozzo-validation rules shared by the ZGW components.
package validators

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
)

// RSIN checks a 9 digit RSIN with the eleven test.
var RSIN = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if len(s) != 9 {
		return apierrors.New("invalid-length", "Waarde moet 9 tekens lang zijn.")
	}
	total := 0
	for i, r := range s {
		if r < '0' || r > '9' {
			return apierrors.New("only-digits", "Voer een numerieke waarde in.")
		}
		d := int(r - '0')
		if i == 8 {
			total -= d
		} else {
			total += d * (9 - i)
		}
	}
	if total%11 != 0 {
		return apierrors.New("invalid", "Onjuist RSIN.")
	}
	return nil
})

var alphanumeric = regexp.MustCompile(`^[A-Za-z0-9-]*$`)

// Identificatie allows letters, digits and dashes.
var Identificatie = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if !alphanumeric.MatchString(s) {
		return apierrors.New("invalid-identificatie", "De identificatie mag alleen letters, cijfers en streepjes bevatten.")
	}
	return nil
})
