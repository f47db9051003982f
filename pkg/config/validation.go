package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError lists every problem found in a configuration.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid configuration: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid configuration (%d problems):\n  - %s",
		len(e.Problems), strings.Join(e.Problems, "\n  - "))
}

// validate is the singleton validator instance
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their configuration key rather than the Go name.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("parentdir", func(fl validator.FieldLevel) bool {
		info, err := os.Stat(filepath.Dir(fl.Field().String()))
		return err == nil && info.IsDir()
	})
	return v
}

// Validate checks cfg and returns a *ValidationError listing every problem.
func Validate(cfg *Configuration) error {
	return validateConfiguration(cfg, nil, nil)
}

// validateConfiguration runs the struct tag rules and the custom rules,
// appending to problems found earlier. Keys in reported have already been
// described.
func validateConfiguration(cfg *Configuration, problems []string, reported map[string]bool) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			key := keyOf(fe)
			if reported[key] {
				continue
			}
			problems = append(problems, describe(key, fe))
		}
	}

	problems = append(problems, validateCustomRules(cfg)...)

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// validateCustomRules performs validation beyond struct tags.
func validateCustomRules(cfg *Configuration) []string {
	var problems []string

	if cfg.Backend.Content.Type == "s3" {
		opts, err := decodeS3Options(cfg.Backend.S3)
		if err != nil {
			return append(problems, fmt.Sprintf("backend.s3: %v", err))
		}
		if opts.Bucket == "" {
			problems = append(problems, "backend.s3.bucket: required when backend.content.type is s3")
		}
		if opts.Region == "" {
			problems = append(problems, "backend.s3.region: required when backend.content.type is s3")
		}
	}

	return problems
}

// keyOf returns the dotted configuration key of a field error.
func keyOf(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// siblingKey returns the key of the field named goName next to key.
func siblingKey(key, goName string) string {
	name := strings.ToLower(goName[:1]) + goName[1:]
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[:i+1] + name
	}
	return name
}

// describe converts a validator error into a user-friendly message.
func describe(key string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s: required key is missing", key)
	case "required_with":
		return fmt.Sprintf("%s: required when %s is set", key, siblingKey(key, fe.Param()))
	case "required_if":
		field, value, _ := strings.Cut(fe.Param(), " ")
		return fmt.Sprintf("%s: required when %s is %s", key, siblingKey(key, field), value)
	case "oneof":
		return fmt.Sprintf("%s: %q is not one of %s", key, fe.Value(),
			strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min":
		return fmt.Sprintf("%s: %v is below the minimum %s", key, fe.Value(), fe.Param())
	case "max":
		return fmt.Sprintf("%s: %v exceeds the maximum %s", key, fe.Value(), fe.Param())
	case "parentdir":
		return fmt.Sprintf("%s: parent directory of %s does not exist", key, fe.Value())
	default:
		return fmt.Sprintf("%s: validation failed on '%s' tag (value: %v)", key, fe.Tag(), fe.Value())
	}
}
