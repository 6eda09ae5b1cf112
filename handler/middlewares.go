package handler

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/monstermash/monstermash/access"
	"github.com/monstermash/monstermash/i18n"
	"github.com/monstermash/monstermash/model"
	"github.com/monstermash/monstermash/store"
)

// LoadPrincipal resolves the session's monster once per request
func LoadPrincipal(db store.IStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			principal := access.Principal{}
			if id, ok := sessionMonsterID(c); ok {
				monster, err := db.GetMonsterByID(id)
				switch {
				case err == nil:
					principal = access.PrincipalFromMonster(monster)
				case errors.Is(err, store.ErrNotFound):
					// the account was deleted while signed in
					clearSession(c)
				default:
					log.Error("Cannot load signed-in monster: ", err)
				}
			}
			c.Set(principalKey, principal)
			return next(c)
		}
	}
}

// Theme switches to the feminine theme for signed-in monsters with gender f
func Theme(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		theme := model.DefaultTheme()
		p := currentPrincipal(c)
		if p.Authenticated && p.Gender == model.GenderFemale {
			theme = model.FeminineTheme()
		}
		c.Set(model.ThemeContextKey, theme)
		return next(c)
	}
}

// Authorize applies the access policy before the action runs
func Authorize(action access.Action) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := currentPrincipal(c)
			switch decision := access.Evaluate(action, p); decision {
			case access.Allow:
				return next(c)
			case access.DenyForbidden:
				log.Warnf("Denied %s to %q", action, p.Name)
				return echo.NewHTTPError(http.StatusForbidden, i18n.T(access.ForbiddenMessage(action)))
			default:
				return loginRequired(c)
			}
		}
	}
}

// loginRequired redirects anonymous visitors to the login page.
// GET requests come back to the page they asked for.
func loginRequired(c echo.Context) error {
	if c.Request().Method == http.MethodGet {
		return c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request().URL.RequestURI()))
	}
	return c.Redirect(http.StatusFound, "/login")
}
