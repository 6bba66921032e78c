// Package validation checks request payloads with struct tags and JSON schemas.
package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
	"github.com/vetrina/vetrina/internal/common/httpx"
	"github.com/vetrina/vetrina/pkg/articlecode"
)

var (
	v    *validator.Validate
	once sync.Once
)

// V returns the shared validator with the custom tags registered.
func V() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		v.RegisterValidation("articlecode", articleCodeValidator)
	})
	return v
}

// articleCodeValidator accepts codes that keep at least one letter or digit after normalization.
func articleCodeValidator(fl validator.FieldLevel) bool {
	return articlecode.Valid(fl.Field().String())
}

// Struct validates s and returns a 400 error naming the offending fields.
func Struct(s any) error {
	err := V().Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return httpx.ErrInvalidRequest(err.Error())
	}
	msgs := make([]string, 0, len(ve))
	for _, e := range ve {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("missing required attribute %s", e.Field()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of [%s]", e.Field(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("invalid value for %s", e.Field()))
		}
	}
	return httpx.ErrInvalidRequest(strings.Join(msgs, "; "))
}

// CompileSchema compiles a self-contained JSON schema.
func CompileSchema(schema string) (*jsonschema.Schema, error) {
	if !gjson.Valid(schema) {
		return nil, fmt.Errorf("invalid JSON schema")
	}
	compiler := jsonschema.NewCompiler()
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		return nil, fmt.Errorf("unsupported schema ref: %s", url)
	}
	if err := compiler.AddResource("inline://schema", bytes.NewReader([]byte(schema))); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiled, err := compiler.Compile("inline://schema")
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return compiled, nil
}

// Document validates a raw JSON document against schema and returns a 400 error on violation.
func Document(schema *jsonschema.Schema, doc []byte) error {
	if !gjson.ValidBytes(doc) {
		return httpx.ErrUnableToParseReqData()
	}
	// The validator only understands encoding/json values with numbers as json.Number.
	var val any
	dec := json.NewDecoder(bytes.NewReader(doc))
	dec.UseNumber()
	if err := dec.Decode(&val); err != nil {
		return httpx.ErrUnableToParseReqData()
	}
	if err := schema.Validate(val); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return httpx.ErrInvalidRequest(describe(ve))
		}
		return httpx.ErrInvalidRequest(err.Error())
	}
	return nil
}

// describe flattens a validation error tree into its leaf messages.
func describe(ve *jsonschema.ValidationError) string {
	if len(ve.Causes) == 0 {
		loc := ve.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return loc + ": " + ve.Message
	}
	msgs := make([]string, 0, len(ve.Causes))
	for _, c := range ve.Causes {
		msgs = append(msgs, describe(c))
	}
	return strings.Join(msgs, "; ")
}
