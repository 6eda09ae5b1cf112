package router

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gorilla/sessions"
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/monstermash/monstermash/i18n"
	"github.com/monstermash/monstermash/model"
	"github.com/monstermash/monstermash/util"
)

// CSRF token names: the hidden form field (also the cookie name) and the echo context key
const (
	CSRFField      = "_csrf"
	CSRFContextKey = "csrf"
)

// pages rendered inside base.html
var pages = []string{"index.html", "view.html", "create.html", "update.html", "error.html"}

// partials parsed into every page
var partials = []string{"form.html"}

// standalone pages rendered without the base layout
var standalone = []string{"login.html"}

// themes with a template set. A theme directory only holds the templates it overrides.
var themes = []string{model.DefaultTheme().Name, model.FeminineTheme().Name}

// TemplateRegistry is a custom html/template renderer for Echo framework
type TemplateRegistry struct {
	templates map[string]map[string]*template.Template
	extraData map[string]string
}

// Render e.Renderer interface
func (t *TemplateRegistry) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	theme := model.DefaultTheme()
	if c != nil {
		if th, ok := c.Get(model.ThemeContextKey).(model.Theme); ok {
			theme = th
		}
	}

	set, ok := t.templates[theme.Name]
	if !ok {
		set = t.templates[model.DefaultTheme().Name]
	}
	tmpl, ok := set[name]
	if !ok {
		return errors.New("Template not found -> " + name)
	}

	// inject more app data information. E.g. appVersion
	if m, ok := data.(map[string]interface{}); ok {
		for k, v := range t.extraData {
			m[k] = v
		}
		m["assets"] = theme.Stylesheets()
		m["theme"] = theme.Name
		m["lang"] = i18n.Language()
		if c != nil {
			m["csrf"], _ = c.Get(CSRFContextKey).(string)
		}
	}

	if isStandalone(name) {
		return tmpl.Execute(w, data)
	}
	return tmpl.ExecuteTemplate(w, "base.html", data)
}

func isStandalone(name string) bool {
	for _, s := range standalone {
		if s == name {
			return true
		}
	}
	return false
}

// themedString reads theme/name and falls back to the default template
func themedString(tmplDir fs.FS, theme, name string) (string, error) {
	if theme != model.DefaultTheme().Name {
		if s, err := util.StringFromEmbedFile(tmplDir, theme+"/"+name); err == nil {
			return s, nil
		}
	}
	return util.StringFromEmbedFile(tmplDir, name)
}

// LoadTemplates parses every page of every theme
func LoadTemplates(tmplDir fs.FS) (map[string]map[string]*template.Template, error) {
	funcs := template.FuncMap{
		"StringsJoin": strings.Join,
		"T":           i18n.T,
	}

	templates := make(map[string]map[string]*template.Template)
	for _, theme := range themes {
		set := make(map[string]*template.Template)

		base, err := themedString(tmplDir, theme, "base.html")
		if err != nil {
			return nil, err
		}
		var shared strings.Builder
		shared.WriteString(base)
		for _, p := range partials {
			s, err := themedString(tmplDir, theme, p)
			if err != nil {
				return nil, err
			}
			shared.WriteString(s)
		}

		for _, page := range pages {
			s, err := themedString(tmplDir, theme, page)
			if err != nil {
				return nil, err
			}
			tmpl, err := template.New(strings.TrimSuffix(page, ".html")).Funcs(funcs).Parse(shared.String() + s)
			if err != nil {
				return nil, err
			}
			set[page] = tmpl
		}

		for _, page := range standalone {
			s, err := themedString(tmplDir, theme, page)
			if err != nil {
				return nil, err
			}
			tmpl, err := template.New(strings.TrimSuffix(page, ".html")).Funcs(funcs).Parse(s)
			if err != nil {
				return nil, err
			}
			set[page] = tmpl
		}

		templates[theme] = set
	}
	return templates, nil
}

// New function
func New(tmplDir fs.FS, extraData map[string]string, secret []byte) *echo.Echo {
	e := echo.New()

	cookieStore := sessions.NewCookieStore(secret)
	cookieStore.Options.HttpOnly = true
	e.Use(session.Middleware(cookieStore))

	templates, err := LoadTemplates(tmplDir)
	if err != nil {
		log.Fatal(err)
	}

	lvl, err := util.ParseLogLevel(util.LookupEnvOrString(util.LogLevel, "INFO"))
	if err != nil {
		log.Fatal(err)
	}
	logConfig := middleware.DefaultLoggerConfig
	logConfig.Skipper = func(c echo.Context) bool {
		resp := c.Response()
		if resp.Status >= 500 && lvl > log.ERROR { // do not log if response is 5XX but log level is higher than ERROR
			return true
		} else if resp.Status >= 400 && lvl > log.WARN { // do not log if response is 4XX but log level is higher than WARN
			return true
		} else if lvl > log.DEBUG { // do not log if log level is higher than DEBUG
			return true
		}
		return false
	}

	log.SetLevel(lvl)
	e.Logger.SetLevel(lvl)
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.LoggerWithConfig(logConfig))
	e.Use(middleware.Recover())
	e.HideBanner = true
	e.HidePort = lvl > log.INFO // hide the port output if the log level is higher than INFO
	e.Use(middleware.CSRFWithConfig(middleware.CSRFConfig{
		TokenLookup:    "form:" + CSRFField,
		ContextKey:     CSRFContextKey,
		CookieName:     CSRFField,
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: http.SameSiteLaxMode,
		ErrorHandler: func(err error, c echo.Context) error {
			log.Warnf("Rejected %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
			return echo.NewHTTPError(http.StatusForbidden, i18n.T("Unable to verify your data submission."))
		},
	}))
	e.Validator = NewValidator()
	e.Renderer = &TemplateRegistry{
		templates: templates,
		extraData: extraData,
	}

	return e
}
