package preference

import (
	"errors"
	"fmt"

	"beacon/models"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidPreference = errors.New("invalid preference")

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		_, err := ParseClock(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks a preference at the API boundary.
func Validate(p *models.Preference) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPreference, err)
	}
	for c := range p.Categories {
		if !c.Valid() {
			return fmt.Errorf("%w: unknown category %q", ErrInvalidPreference, c)
		}
	}
	return nil
}
