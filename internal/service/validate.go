package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	appErrors "github.com/unclebandit/endorsenyc-backend/internal/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report JSON field names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateRequest turns the first failed rule into an appErrors.ValidationError.
func validateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return appErrors.NewValidation(fe.Field(), "is required")
	case "oneof":
		return appErrors.NewValidation(fe.Field(), "must be one of: "+strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "gte":
		return appErrors.NewValidation(fe.Field(), "must be at least "+fe.Param())
	case "max", "lte":
		return appErrors.NewValidation(fe.Field(), "must be at most "+fe.Param())
	case "url", "http_url":
		return appErrors.NewValidation(fe.Field(), "must be a valid URL")
	default:
		return appErrors.NewValidation(fe.Field(), fmt.Sprintf("failed %q check", fe.Tag()))
	}
}
