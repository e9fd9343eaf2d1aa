package config

import (
	"sync"

	"github.com/grovetools/basin/schema"
)

// SchemaValidator validates raw configuration documents against the schema
// generated from Config.
type SchemaValidator struct {
	validator *schema.Validator
}

var (
	defaultValidator    *SchemaValidator
	defaultValidatorErr error
	defaultValidatorMu  sync.Once
)

// NewSchemaValidator creates a new schema validator from the generated schema.
func NewSchemaValidator() (*SchemaValidator, error) {
	defaultValidatorMu.Do(func() {
		data, err := GenerateSchema()
		if err != nil {
			defaultValidatorErr = err
			return
		}
		validator, err := schema.NewValidator(data)
		if err != nil {
			defaultValidatorErr = err
			return
		}
		defaultValidator = &SchemaValidator{validator: validator}
	})
	return defaultValidator, defaultValidatorErr
}

// Validate validates configuration data against the schema.
func (v *SchemaValidator) Validate(configData interface{}) error {
	return v.validator.Validate(configData)
}
