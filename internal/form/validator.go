package form

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Step identifies one of the three checkout stages.
type Step int

const (
	StepPersonal Step = 1
	StepCompany  Step = 2
	StepAddress  Step = 3
)

// Messages shown next to invalid fields.
const (
	MsgRequired     = "Obrigatório"
	MsgInvalidEmail = "E-mail inválido"
	MsgInvalidStep  = "Etapa inválida"
)

// PersonalInfo is collected on the first step.
type PersonalInfo struct {
	FullName string `json:"nome" validate:"required"`
	Phone    string `json:"tel" validate:"required"`
	Email    string `json:"email" validate:"required,simpleemail"`
	TaxID    string `json:"cpf" validate:"required"`
}

// CompanyInfo is optional.
type CompanyInfo struct {
	CompanyTaxID string `json:"cnpj"`
	LegalName    string `json:"razao"`
}

// AddressInfo is collected on the last step.
type AddressInfo struct {
	PostalCode   string `json:"cep" validate:"required"`
	Number       string `json:"numero" validate:"required"`
	Complement   string `json:"complemento"`
	Neighborhood string `json:"bairro" validate:"required"`
	City         string `json:"cidade" validate:"required"`
	State        string `json:"estado" validate:"required"`
}

// Forms groups the data of all steps.
type Forms struct {
	Personal PersonalInfo `json:"personal"`
	Company  CompanyInfo  `json:"company"`
	Address  AddressInfo  `json:"address"`
}

// FieldErrors maps a field key (its json name) to a display message.
type FieldErrors map[string]string

// Empty reports whether there are no errors.
func (e FieldErrors) Empty() bool { return len(e) == 0 }

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

var tagMessages = map[string]string{
	"required":    MsgRequired,
	"simpleemail": MsgInvalidEmail,
}

// Validator checks the fields of a single checkout step.
type Validator struct {
	v *validator.Validate
}

// NewValidator registers the custom rules and json field naming.
func NewValidator() (*Validator, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("simpleemail", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	}); err != nil {
		return nil, fmt.Errorf("form: register simpleemail: %w", err)
	}
	return &Validator{v: v}, nil
}

// MustValidator is NewValidator for wiring code and tests.
func MustValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

// ValidateStep returns the field errors of the given step. It never mutates data.
func (val *Validator) ValidateStep(step Step, data Forms) FieldErrors {
	errs := FieldErrors{}
	var target any
	switch step {
	case StepPersonal:
		target = data.Personal
	case StepCompany:
		target = data.Company
	case StepAddress:
		target = data.Address
	default:
		errs["step"] = MsgInvalidStep
		return errs
	}
	err := val.v.Struct(target)
	if err == nil {
		return errs
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		errs["_"] = err.Error()
		return errs
	}
	for _, fe := range verrs {
		if _, seen := errs[fe.Field()]; seen {
			continue
		}
		msg, ok := tagMessages[fe.Tag()]
		if !ok {
			msg = MsgRequired
		}
		// an empty email reads as malformed, not missing
		if fe.Field() == "email" {
			msg = MsgInvalidEmail
		}
		errs[fe.Field()] = msg
	}
	return errs
}
