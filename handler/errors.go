package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// HTTPErrorHandler renders the error page for every error escaping a handler
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		message = fmt.Sprint(he.Message)
	} else {
		log.Error(err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.Render(code, "error.html", map[string]interface{}{
			"baseData": baseData(c, "error"),
			"code":     code,
			"message":  message,
		})
		if err != nil {
			log.Error("Cannot render error page: ", err)
			err = c.String(code, message)
		}
	}
	if err != nil {
		log.Error(err)
	}
}
