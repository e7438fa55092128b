package user

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

const (
	// MaxIDLength is the longest accepted external id.
	MaxIDLength = 21
	// MaxNameLength is the longest accepted display name, in characters.
	MaxNameLength = 50
)

var idPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("userid", func(fl validator.FieldLevel) bool {
		return idPattern.MatchString(fl.Field().String())
	})
}

type idInput struct {
	Value string `validate:"required,max=21,userid"`
}

type nameInput struct {
	Value string `validate:"required,max=50"`
}

// NewID validates s as an external id.
func NewID(s string) (ID, error) {
	if err := validate.Struct(idInput{Value: s}); err != nil {
		return "", fmt.Errorf("%w: %q: %s", ErrInvalidID, s, describe(err))
	}
	return ID(s), nil
}

// NewName validates s as a display name (1 to MaxNameLength characters).
func NewName(s string) (Name, error) {
	if err := validate.Struct(nameInput{Value: s}); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidName, describe(err))
	}
	return Name(s), nil
}

func describe(err error) string {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		return "failed " + verrs[0].Tag()
	}
	return err.Error()
}
