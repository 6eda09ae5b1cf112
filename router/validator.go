package router

import "gopkg.in/go-playground/validator.v9"

// NewValidator func
func NewValidator() *Validator {
	return &Validator{
		validator: validator.New(),
	}
}

// Validator wraps go-playground/validator as the echo.Validator
type Validator struct {
	validator *validator.Validate
}

// Validate checks the struct's validate tags
func (v *Validator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}
