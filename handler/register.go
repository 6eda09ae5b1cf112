package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/monstermash/monstermash/access"
	"github.com/monstermash/monstermash/store"
	"github.com/monstermash/monstermash/upload"
)

// Register wires the monster pages, the access policy and the theme hook into app.
// app must already carry the session middleware.
func Register(app *echo.Echo, db store.IStore, images *upload.Store, baseURL string, notifiers ...Notifier) {
	app.HTTPErrorHandler = HTTPErrorHandler
	app.Use(LoadPrincipal(db), Theme)

	index := MonsterIndex(db)
	app.GET("/", index)
	app.GET("/monster", index)
	app.GET("/monster/index", index)

	view := MonsterView(db, baseURL)
	app.GET("/monster/view", view)
	app.GET("/profile/:id", view)

	create := MonsterCreate(db, images, notifiers...)
	app.GET("/monster/create", create)
	app.POST("/monster/create", create)
	app.GET("/register", create)
	app.POST("/register", create)

	update := MonsterUpdate(db, images)
	app.GET("/monster/update", update, Authorize(access.ActionUpdate))
	app.POST("/monster/update", update, Authorize(access.ActionUpdate))

	app.POST("/monster/delete", MonsterDelete(db, images), Authorize(access.ActionDelete))

	app.GET("/login", LoginPage())
	app.POST("/login", Login(db))
	app.GET("/logout", Logout())

	app.Static("/uploads", images.Dir())
}
