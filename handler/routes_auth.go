package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/monstermash/monstermash/i18n"
	"github.com/monstermash/monstermash/store"
	"github.com/monstermash/monstermash/util"
)

type loginForm struct {
	Name     string `form:"name"`
	Password string `form:"password"`
	Remember string `form:"remember"`
	Next     string `form:"next"`
}

// LoginPage handler
func LoginPage() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Render(http.StatusOK, "login.html", map[string]interface{}{
			"next":  c.QueryParam("next"),
			"name":  "",
			"error": "",
		})
	}
}

// Login for signing in handler
func Login(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		form := loginForm{}
		if err := c.Bind(&form); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Bad post data")
		}

		fail := func() error {
			return c.Render(http.StatusOK, "login.html", map[string]interface{}{
				"next":  form.Next,
				"name":  form.Name,
				"error": i18n.T("Incorrect name or password."),
			})
		}

		monster, err := db.GetMonsterByName(form.Name)
		if errors.Is(err, store.ErrNotFound) {
			log.Warnf("Login attempt for unknown monster %q", form.Name)
			return fail()
		}
		if err != nil {
			return err
		}

		match, err := util.VerifyHash(monster.PasswordHash, form.Password)
		if err != nil {
			log.Error("Cannot verify password hash: ", err)
			return fail()
		}
		if !match {
			log.Warnf("Invalid password for monster %q", form.Name)
			return fail()
		}

		remember, _ := strconv.ParseBool(form.Remember)
		if err := createSession(c, monster.ID, remember); err != nil {
			return err
		}
		log.Infof("Logged in monster %d (%s)", monster.ID, monster.Name)

		return c.Redirect(http.StatusFound, safeNext(form.Next))
	}
}

// Logout to log a user out
func Logout() echo.HandlerFunc {
	return func(c echo.Context) error {
		clearSession(c)
		return c.Redirect(http.StatusFound, "/monster")
	}
}
