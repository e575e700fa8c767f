package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Tags reported by the cross-field rules below.
const (
	tagNotBelow   = "not_below"
	tagNotAbove   = "not_above"
	tagLongerThan = "longer_than"
)

// validate reports fields by their koanf key so messages match the YAML
// files and the APP_ environment variables.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	v.RegisterStructValidation(validateRetry, RetryConfig{})
	v.RegisterStructValidation(validateServer, ServerConfig{})
	v.RegisterStructValidation(validateConfig, Config{})

	return v
}

// Validate validates the configuration and returns an error if invalid.
// Validation fails fast - the service should not start with invalid config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return formatValidationErrors(err)
	}
	return nil
}

// validateRetry keeps the backoff window ordered.
func validateRetry(sl validator.StructLevel) {
	r, ok := sl.Current().Interface().(RetryConfig)
	if !ok || r.InitialInterval == 0 || r.MaxInterval == 0 {
		return
	}

	if r.MaxInterval < r.InitialInterval {
		sl.ReportError(r.MaxInterval, "max_interval", "MaxInterval", tagNotBelow, "client.retry.initial_interval")
	}
}

// validateServer stops the request deadline from outliving the write deadline.
func validateServer(sl validator.StructLevel) {
	s, ok := sl.Current().Interface().(ServerConfig)
	if !ok || s.RequestTimeout == 0 || s.WriteTimeout == 0 {
		return
	}

	if s.RequestTimeout > s.WriteTimeout {
		sl.ReportError(s.RequestTimeout, "request_timeout", "RequestTimeout", tagNotAbove, "server.write_timeout")
	}
}

// validateConfig holds rules that span sections. A scheduled sync must not
// fire again before a single remote call could have timed out.
func validateConfig(sl validator.StructLevel) {
	c, ok := sl.Current().Interface().(Config)
	if !ok || !c.Sync.Enabled || c.Sync.Interval == 0 || c.Client.Timeout == 0 {
		return
	}

	if c.Sync.Interval <= c.Client.Timeout {
		sl.ReportError(c.Sync.Interval, "sync.interval", "Interval", tagLongerThan, "client.timeout")
	}
}

// formatValidationErrors converts validator errors to a readable format.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	errs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		errs = append(errs, formatFieldError(e))
	}

	return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
}

// formatFieldError formats a single field validation error, naming the
// environment variable that overrides it.
func formatFieldError(e validator.FieldError) string {
	key := formatFieldPath(e.Namespace())
	field := fmt.Sprintf("%s (%s)", key, envVarFor(key))

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "required_if":
		return fmt.Sprintf("%s is required when %s", field, describeCondition(key, e.Param()))
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be an absolute URL such as https://jsonplaceholder.typicode.com", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be in host:port form", field)
	case "startswith":
		return fmt.Sprintf("%s must be a path starting with %q", field, e.Param())
	case tagNotBelow:
		return fmt.Sprintf("%s must not be shorter than %s", field, e.Param())
	case tagNotAbove:
		return fmt.Sprintf("%s must not exceed %s", field, e.Param())
	case tagLongerThan:
		return fmt.Sprintf("%s must be longer than %s", field, e.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}

// describeCondition turns a required_if param such as "Driver sqlite" into
// "storage.driver is sqlite", resolving the sibling against key's section.
func describeCondition(key, param string) string {
	sibling, value, ok := strings.Cut(param, " ")
	if !ok {
		return param
	}

	section := ""
	if i := strings.LastIndex(key, "."); i >= 0 {
		section = key[:i+1]
	}

	return fmt.Sprintf("%s%s is %s", section, toSnake(sibling), value)
}

// formatFieldPath converts "Config.remote.snapshot_size" to "remote.snapshot_size".
func formatFieldPath(namespace string) string {
	_, path, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	return path
}

// envVarFor maps "sync.initial_delay" to APP_SYNC_INITIAL_DELAY.
func envVarFor(key string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// toSnake converts a Go field name such as "Enabled" or "MaxSize" to the
// koanf spelling.
func toSnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
