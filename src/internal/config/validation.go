package config

import (
	"fmt"
	"net"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wifx/geoip-rsc/src/internal/utils"
)

var (
	listPrefixRegexp = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)
	listSuffixRegexp = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
	tmpfsSizeRegexp  = regexp.MustCompile(`^[1-9][0-9]*(k|K|M|G|KiB|MiB|GiB)?$`)
)

// maxListPrefixLength leaves room for "-<zone>-old" within RouterOS's 63
// character list name limit.
const maxListPrefixLength = 40

// getValidationMessage returns a human-readable message for a validation error
func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "field is required"
	case "min":
		return fmt.Sprintf("must be >= %s", e.Param())
	case "max":
		return fmt.Sprintf("must be <= %s", e.Param())
	case "url":
		return "must be a valid URL"
	case "nefield":
		return fmt.Sprintf("must differ from %s", e.Param())
	case "hostport_or_empty":
		return "must be in format 'host:port' or empty"
	case "list_prefix":
		return fmt.Sprintf("must be at most %d characters of [A-Za-z0-9_.-] and must not end with '-'", maxListPrefixLength)
	case "list_suffix":
		return "must consist only of [A-Za-z0-9_.-]"
	case "routeros_duration":
		return "must be a RouterOS duration such as '1d 01:00:00' or '25h'"
	case "tmpfs_size":
		return "must be a size such as '20M' or '512k'"
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// ValidationError represents a single validation error with context
type ValidationError struct {
	ItemName  string // Section or item the error belongs to, may be empty
	FieldPath string // Dot-notation field path (e.g., "general.entry_timeout")
	Message   string // Human-readable error message
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("validation failed with %d error(s):\n", len(ve)))
	for i, err := range ve {
		if err.ItemName != "" {
			sb.WriteString(fmt.Sprintf("  %d. [%s] %s: %s\n", i+1, err.ItemName, err.FieldPath, err.Message))
		} else {
			sb.WriteString(fmt.Sprintf("  %d. %s: %s\n", i+1, err.FieldPath, err.Message))
		}
	}
	return sb.String()
}

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Register custom validators
	if err := validate.RegisterValidation("hostport_or_empty", validateHostPortOrEmpty); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("list_prefix", validateListPrefix); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("list_suffix", validateListSuffix); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("routeros_duration", validateRouterOSDuration); err != nil {
		panic(err)
	}
	if err := validate.RegisterValidation("tmpfs_size", validateTmpfsSize); err != nil {
		panic(err)
	}

	// Register function to get field name from "toml" tag
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Custom validator: host:port format or empty
func validateHostPortOrEmpty(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	_, _, err := net.SplitHostPort(value)
	return err == nil
}

func validateListPrefix(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	return len(value) <= maxListPrefixLength &&
		listPrefixRegexp.MatchString(value) &&
		!strings.HasSuffix(value, "-")
}

func validateListSuffix(fl validator.FieldLevel) bool {
	return listSuffixRegexp.MatchString(fl.Field().String())
}

func validateRouterOSDuration(fl validator.FieldLevel) bool {
	_, err := utils.ParseRouterOSDuration(fl.Field().String())
	return err == nil
}

func validateTmpfsSize(fl validator.FieldLevel) bool {
	return tmpfsSizeRegexp.MatchString(fl.Field().String())
}
