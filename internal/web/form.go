package web

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
)

// MaxFormMemory bounds the in-memory part of multipart forms.
const MaxFormMemory = 10 << 20

var (
	decoder  = form.NewDecoder()
	validate = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := f.Tag.Get("form")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterAlias("lng", "required,longitude")
	v.RegisterAlias("lat", "required,latitude")
	return v
}

// ParseForm parses url-encoded or multipart bodies once.
func (c *Context) ParseForm() error {
	if c.Request.PostForm != nil {
		return nil
	}
	if strings.HasPrefix(c.Request.Header.Get("Content-Type"), "multipart/form-data") {
		return c.Request.ParseMultipartForm(MaxFormMemory)
	}
	return c.Request.ParseForm()
}

// Bind decodes the posted form into dst, trimming values, and validates it.
func (c *Context) Bind(dst any) error {
	if err := c.ParseForm(); err != nil {
		return NewError(http.StatusBadRequest, "Invalid form submission")
	}
	for key, vals := range c.Request.PostForm {
		for i := range vals {
			vals[i] = strings.TrimSpace(vals[i])
		}
		c.Request.PostForm[key] = vals
	}
	if err := decoder.Decode(dst, c.Request.PostForm); err != nil {
		return NewError(http.StatusBadRequest, "Invalid form submission")
	}
	return validate.Struct(dst)
}

// ValidationMessages turns a Bind error into messages fit for flashes.
// It returns nil when err is not a validation failure.
func ValidationMessages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		var e *Error
		if errors.As(err, &e) && e.Status == http.StatusBadRequest {
			return []string{e.Message}
		}
		return nil
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if m := fieldMessage(fe); !slices.Contains(msgs, m) {
			msgs = append(msgs, m)
		}
	}
	return msgs
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("You must supply a %s!", fe.Field())
	case "email":
		return "That Email is not valid!"
	case "eqfield":
		return "Oops! Your passwords do not match"
	case "lng", "lat":
		if fe.ActualTag() == "required" {
			return "You must supply coordinates!"
		}
		return "You must supply valid coordinates!"
	case "min", "max":
		return fmt.Sprintf("The %s is out of range!", fe.Field())
	default:
		return fmt.Sprintf("The %s is invalid!", fe.Field())
	}
}

// Invalid flashes every validation message and sends the user back to the form.
// It returns nil when err is not a validation failure.
func (c *Context) Invalid(err error) Response {
	msgs := ValidationMessages(err)
	if msgs == nil {
		return nil
	}
	for _, m := range msgs {
		c.Flash(FlashError, m)
	}
	return RedirectBack()
}
