package handler

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"
	"gopkg.in/go-playground/validator.v9"

	"github.com/monstermash/monstermash/i18n"
	"github.com/monstermash/monstermash/model"
	"github.com/monstermash/monstermash/store"
)

// fieldErrors turns validator failures into one message per form field
func fieldErrors(err error) model.FieldErrors {
	errs := model.FieldErrors{}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		errs.Add("_form", err.Error())
		return errs
	}
	for _, fe := range ve {
		label := i18n.T(fe.Field())
		var msg string
		switch fe.Tag() {
		case "required":
			msg = i18n.T("%s cannot be blank.", label)
		case "min":
			msg = i18n.T("%s should contain at least %s characters.", label, fe.Param())
		case "max":
			msg = i18n.T("%s should contain at most %s characters.", label, fe.Param())
		case "email":
			msg = i18n.T("%s is not a valid email address.", label)
		default:
			msg = i18n.T("%s is invalid.", label)
		}
		errs.Add(strings.ToLower(fe.Field()), msg)
	}
	return errs
}

// validateForm checks the submitted form. selfID is the id of the record being
// updated and zero on create, where a password is mandatory.
func validateForm(c echo.Context, db store.IStore, form *model.MonsterForm, selfID int64) (model.FieldErrors, error) {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)

	errs := model.FieldErrors{}
	if err := c.Validate(form); err != nil {
		errs = fieldErrors(err)
	}
	if selfID == 0 && form.Password == "" {
		errs.Add("password", i18n.T("%s cannot be blank.", i18n.T("Password")))
	}

	if _, ok := errs["name"]; !ok {
		existing, err := db.GetMonsterByName(form.Name)
		switch {
		case err == nil && existing.ID != selfID:
			errs.Add("name", nameTaken(form.Name))
		case err != nil && !errors.Is(err, store.ErrNotFound):
			return errs, err
		}
	}
	return errs, nil
}

func nameTaken(name string) string {
	return i18n.T("Name \"%s\" has already been taken.", name)
}
