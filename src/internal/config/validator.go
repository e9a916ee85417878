package config

import (
	"errors"
	"path/filepath"

	"github.com/go-playground/validator/v10"
)

// ValidateConfig validates the entire configuration and returns all validation errors
func (c *Config) ValidateConfig() error {
	var validationErrors ValidationErrors

	sections := []struct {
		name  string
		value interface{}
	}{
		{"general", c.General},
		{"api", c.API},
		{"sources", c.Sources},
		{"paths", c.Paths},
	}

	for _, s := range sections {
		if reflectNil(s.value) {
			validationErrors = append(validationErrors, ValidationError{
				FieldPath: s.name,
				Message:   "configuration must contain '" + s.name + "' section",
			})
			continue
		}
		if err := validate.Struct(s.value); err != nil {
			validationErrors = append(validationErrors, convertValidatorErrors(err, s.name, "")...)
		}
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}

	validationErrors = append(validationErrors, c.validateSources()...)
	validationErrors = append(validationErrors, c.validatePaths()...)

	if len(validationErrors) > 0 {
		return validationErrors
	}

	return nil
}

func (c *Config) validateSources() ValidationErrors {
	var validationErrors ValidationErrors

	if c.Sources.IPv4TarGz == "" && c.Sources.IPv6TarGz == "" {
		validationErrors = append(validationErrors, ValidationError{
			ItemName:  "sources",
			FieldPath: "sources.ipv4_tar_gz",
			Message:   "at least one of ipv4_tar_gz or ipv6_tar_gz must be set",
		})
	}

	return validationErrors
}

func (c *Config) validatePaths() ValidationErrors {
	var validationErrors ValidationErrors

	if filepath.Clean(c.GetAbsBlocksDir(Ipv4)) == filepath.Clean(c.GetAbsBlocksDir(Ipv6)) {
		validationErrors = append(validationErrors, ValidationError{
			ItemName:  "paths",
			FieldPath: "paths.ipv6_dir",
			Message:   "ipv4_dir and ipv6_dir must be different directories",
		})
	}

	return validationErrors
}

func reflectNil(v interface{}) bool {
	switch s := v.(type) {
	case *GeneralConfig:
		return s == nil
	case *APIConfig:
		return s == nil
	case *SourcesConfig:
		return s == nil
	case *PathsConfig:
		return s == nil
	default:
		return v == nil
	}
}

// convertValidatorErrors converts go-playground/validator errors to our ValidationError format
func convertValidatorErrors(err error, fieldPrefix string, itemName string) ValidationErrors {
	var validationErrors ValidationErrors

	var validatorErrs validator.ValidationErrors
	if errors.As(err, &validatorErrs) {
		for _, e := range validatorErrs {
			fieldPath := fieldPrefix
			if e.Field() != "" {
				// e.Field() returns the TOML tag name because of the registered TagNameFunc
				fieldName := e.Field()

				if fieldPrefix != "" {
					fieldPath = fieldPrefix + "." + fieldName
				} else {
					fieldPath = fieldName
				}
			}

			validationErrors = append(validationErrors, ValidationError{
				ItemName:  itemName,
				FieldPath: fieldPath,
				Message:   getValidationMessage(e),
			})
		}
	}

	return validationErrors
}
