// services/validate.go - Input validation shared by the services
package services

import (
	"fmt"
	"reflect"
	"strings"

	"fitchallenge/models"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})

	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || models.ValidCategory(s)
	})
	_ = v.RegisterValidation("fitness_goal", func(fl validator.FieldLevel) bool {
		return models.ValidFitnessGoal(fl.Field().String())
	})

	return v
}

// validateStruct runs the struct tags on input and turns the first failure
// into an ErrValidation with a readable message
func validateStruct(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return WrapError(ErrValidation, "invalid input", err)
	}
	return WrapError(ErrValidation, fieldMessage(fieldErrs[0]), err)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "email":
		return field + " must be a valid email address"
	case "category":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(models.Categories, ", "))
	case "fitness_goal":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(models.FitnessGoals, ", "))
	}
	return fmt.Sprintf("%s is invalid", field)
}
