package models

import (
	"github.com/go-playground/validator/v10"

	"github.com/brilliox/brilliox/pkg/crm"
)

// NewValidator returns a validator with the API's custom tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("lead_status", func(fl validator.FieldLevel) bool {
		return crm.ValidStatus(fl.Field().String())
	})
	return v
}
