package handler

import (
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/monstermash/monstermash/access"
	"github.com/monstermash/monstermash/model"
)

const (
	sessionName       = "session"
	sessionMonsterKey = "monster_id"
	principalKey      = "principal"
	rememberMaxAge    = 86400 * 30
)

// sessionMonsterID returns the id of the signed-in monster, if any
func sessionMonsterID(c echo.Context) (int64, bool) {
	sess, err := session.Get(sessionName, c)
	if err != nil {
		return 0, false
	}
	id, ok := sess.Values[sessionMonsterKey].(int64)
	return id, ok && id > 0
}

// createSession stores the monster id in the session cookie
func createSession(c echo.Context, id int64, remember bool) error {
	sess, _ := session.Get(sessionName, c)
	sess.Options.Path = "/"
	sess.Options.HttpOnly = true
	sess.Options.SameSite = http.SameSiteLaxMode
	if remember {
		sess.Options.MaxAge = rememberMaxAge
	} else {
		sess.Options.MaxAge = 0
	}
	sess.Values[sessionMonsterKey] = id
	return sess.Save(c.Request(), c.Response())
}

// clearSession to remove current session
func clearSession(c echo.Context) {
	sess, _ := session.Get(sessionName, c)
	delete(sess.Values, sessionMonsterKey)
	sess.Options.Path = "/"
	sess.Options.MaxAge = -1
	if err := sess.Save(c.Request(), c.Response()); err != nil {
		log.Error("Cannot clear session: ", err)
	}
}

// currentPrincipal returns the principal loaded by LoadPrincipal, anonymous otherwise
func currentPrincipal(c echo.Context) access.Principal {
	p, _ := c.Get(principalKey).(access.Principal)
	return p
}

// baseData builds the values the base layout needs
func baseData(c echo.Context, active string) model.BaseData {
	p := currentPrincipal(c)
	return model.BaseData{
		Active:      active,
		CurrentUser: p.Name,
		CurrentID:   p.ID,
		Admin:       p.HasRole(model.RoleAdmin),
	}
}

// safeNext only accepts local absolute paths as redirect targets.
// Backslashes, whitespace and control characters are refused.
func safeNext(next string) string {
	const fallback = "/monster"
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") {
		return fallback
	}
	for _, r := range next {
		if r == '\\' || unicode.IsControl(r) || unicode.IsSpace(r) {
			return fallback
		}
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	return next
}
