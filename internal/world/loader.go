package world

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Format identifies a world file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", &ConfigError{Index: -1, Reason: fmt.Sprintf("unsupported world file extension %q", filepath.Ext(path))}
	}
}

// LoadFile reads, parses and validates the world file at path.
func LoadFile(path string) (*Definition, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Index: -1, Reason: "failed to read world file", Err: err}
	}
	return Parse(data, format)
}

// Parse decodes and validates a world definition. Unknown fields are
// rejected in both formats.
func Parse(data []byte, format Format) (*Definition, error) {
	var def Definition
	var err error
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&def)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&def)
	default:
		return nil, &ConfigError{Index: -1, Reason: fmt.Sprintf("unknown format %q", format)}
	}
	if errors.Is(err, io.EOF) {
		return nil, &ConfigError{Index: -1, Reason: "world file is empty"}
	}
	if err != nil {
		return nil, &ConfigError{Index: -1, Reason: "failed to parse world file", Err: err}
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	return &def, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report world file keys instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field-level constraints. Cross references are resolved by
// Build.
func (d *Definition) Validate() error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ConfigError{Index: -1, Reason: "validation failed", Err: err}
	}
	// Fail fast on the first violation.
	return fieldError(verrs[0])
}

// fieldError turns "Definition.processes[2].inputs[0].quantity" into a
// ConfigError for section processes, index 2, field inputs[0].quantity.
func fieldError(fe validator.FieldError) *ConfigError {
	ce := &ConfigError{Index: -1, Reason: describeTag(fe)}

	_, path, _ := strings.Cut(fe.Namespace(), ".")
	head, rest, _ := strings.Cut(path, ".")
	ce.Field = rest

	section, idx, found := strings.Cut(head, "[")
	ce.Section = section
	if found {
		if n, err := strconv.Atoi(strings.TrimSuffix(idx, "]")); err == nil {
			ce.Index = n
		}
	}
	return ce
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("needs at least %s entries", fe.Param())
		}
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}
