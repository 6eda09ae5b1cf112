package handler

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"

	"github.com/monstermash/monstermash/i18n"
	"github.com/monstermash/monstermash/model"
	"github.com/monstermash/monstermash/store"
	"github.com/monstermash/monstermash/upload"
	"github.com/monstermash/monstermash/util"
)

// Notifier is told about every successfully created monster
type Notifier interface {
	NotifyRegistered(ctx context.Context, m model.Monster) error
}

func notFound() error {
	return echo.NewHTTPError(http.StatusNotFound, i18n.T("The requested page does not exist."))
}

// monsterID reads the id from the path (/profile/:id) or the query string
func monsterID(c echo.Context) (int64, error) {
	raw := c.Param("id")
	if raw == "" {
		raw = c.QueryParam("id")
	}
	if raw == "" {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Missing required parameters: id")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, notFound()
	}
	return id, nil
}

// findMonster loads the monster addressed by the request
func findMonster(c echo.Context, db store.IStore) (model.Monster, error) {
	id, err := monsterID(c)
	if err != nil {
		return model.Monster{}, err
	}
	monster, err := db.GetMonsterByID(id)
	if errors.Is(err, store.ErrNotFound) {
		return monster, notFound()
	}
	if err != nil {
		return monster, fmt.Errorf("cannot fetch monster %d: %w", id, err)
	}
	return monster, nil
}

// formImage returns the uploaded image, or nil when none was submitted or it is unusable
func formImage(c echo.Context, images *upload.Store, errs model.FieldErrors) *multipart.FileHeader {
	fh, err := c.FormFile("image_file")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
			log.Warn("Cannot read uploaded image: ", err)
			errs.Add("image_file", i18n.T("%s is invalid.", i18n.T("Image")))
		}
		return nil
	}
	if _, err := images.Check(fh); err != nil {
		errs.Add("image_file", err.Error())
		return nil
	}
	return fh
}

// MonsterIndex handler lists monsters with the filters of the query string
func MonsterIndex(db store.IStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		search := model.MonsterSearch{}
		err := echo.QueryParamsBinder(c).
			FailFast(false).
			Int64("id", &search.ID).
			String("name", &search.Name).
			String("gender", &search.Gender).
			String("role", &search.Role).
			String("sort", &search.Sort).
			Int("page", &search.Page).
			Int("per-page", &search.PerPage).
			BindError()
		if err != nil {
			log.Debugf("Ignoring invalid search parameters: %v", err)
		}
		search.Normalize()

		page, err := db.SearchMonsters(search)
		if err != nil {
			return fmt.Errorf("cannot search monsters: %w", err)
		}

		return c.Render(http.StatusOK, "index.html", map[string]interface{}{
			"baseData": baseData(c, "index"),
			"search":   search,
			"page":     page,
		})
	}
}

// MonsterView handler
func MonsterView(db store.IStore, baseURL string) echo.HandlerFunc {
	return func(c echo.Context) error {
		monster, err := findMonster(c, db)
		if err != nil {
			return err
		}

		qr, err := util.ProfileQRCode(baseURL, monster.ID)
		if err != nil {
			log.Warn(err)
		}

		return c.Render(http.StatusOK, "view.html", map[string]interface{}{
			"baseData": baseData(c, "view"),
			"model":    monster,
			"qrcode":   template.URL(qr),
		})
	}
}

// MonsterCreate handler shows the registration form and creates the monster on POST
func MonsterCreate(db store.IStore, images *upload.Store, notifiers ...Notifier) echo.HandlerFunc {
	return func(c echo.Context) error {
		monster := model.Monster{Role: model.RoleMember, HashPassword: true}
		form := model.MonsterForm{}
		errs := model.FieldErrors{}

		render := func() error {
			return c.Render(http.StatusOK, "create.html", map[string]interface{}{
				"baseData": baseData(c, "create"),
				"model":    monster,
				"form":     form,
				"errors":   errs,
			})
		}

		if c.Request().Method != http.MethodPost {
			return render()
		}

		if err := c.Bind(&form); err != nil {
			log.Warn("Cannot bind monster form: ", err)
			errs.Add("_form", i18n.T("%s is invalid.", i18n.T("Monster")))
			return render()
		}
		image := formImage(c, images, errs)
		validation, err := validateForm(c, db, &form, 0)
		if err != nil {
			return err
		}
		for field, msg := range validation {
			errs.Add(field, msg)
		}
		if len(errs) > 0 {
			form.Password = ""
			return render()
		}

		form.Apply(&monster)
		if err := monster.ApplyPassword(util.HashPassword); err != nil {
			return err
		}
		if image != nil {
			name, err := images.Save(image)
			if err != nil {
				return fmt.Errorf("cannot store image: %w", err)
			}
			monster.Image = name
		}
		monster.CreatedAt = time.Now().UTC()
		monster.UpdatedAt = monster.CreatedAt

		if err := db.SaveMonster(&monster); err != nil {
			if rmErr := images.Remove(monster.Image); rmErr != nil {
				log.Warn("Cannot remove orphaned image: ", rmErr)
			}
			monster.Image = ""
			if errors.Is(err, store.ErrDuplicateName) {
				errs.Add("name", nameTaken(form.Name))
				form.Password = ""
				return render()
			}
			return fmt.Errorf("cannot save monster: %w", err)
		}
		log.Infof("Created monster %d (%s)", monster.ID, monster.Name)

		for _, n := range notifiers {
			if err := n.NotifyRegistered(c.Request().Context(), monster); err != nil {
				log.Warnf("Cannot notify about new monster %d: %v", monster.ID, err)
			}
		}

		return c.Redirect(http.StatusFound, fmt.Sprintf("/monster/view?id=%d", monster.ID))
	}
}

// MonsterUpdate handler shows the edit form and saves the changes on POST
func MonsterUpdate(db store.IStore, images *upload.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		monster, err := findMonster(c, db)
		if err != nil {
			return err
		}
		form := model.FormFromMonster(monster)
		errs := model.FieldErrors{}

		render := func() error {
			return c.Render(http.StatusOK, "update.html", map[string]interface{}{
				"baseData": baseData(c, "update"),
				"model":    monster,
				"form":     form,
				"errors":   errs,
			})
		}

		if c.Request().Method != http.MethodPost {
			return render()
		}

		form = model.MonsterForm{}
		if err := c.Bind(&form); err != nil {
			log.Warn("Cannot bind monster form: ", err)
			errs.Add("_form", i18n.T("%s is invalid.", i18n.T("Monster")))
			return render()
		}
		image := formImage(c, images, errs)
		validation, err := validateForm(c, db, &form, monster.ID)
		if err != nil {
			return err
		}
		for field, msg := range validation {
			errs.Add(field, msg)
		}
		if len(errs) > 0 {
			form.Password = ""
			return render()
		}

		updated := monster
		form.Apply(&updated)
		if err := updated.ApplyPassword(util.HashPassword); err != nil {
			return err
		}
		if image != nil {
			name, err := images.Save(image)
			if err != nil {
				return fmt.Errorf("cannot store image: %w", err)
			}
			updated.Image = name
		}
		updated.UpdatedAt = time.Now().UTC()

		if err := db.SaveMonster(&updated); err != nil {
			if image != nil {
				if rmErr := images.Remove(updated.Image); rmErr != nil {
					log.Warn("Cannot remove orphaned image: ", rmErr)
				}
			}
			if errors.Is(err, store.ErrDuplicateName) {
				errs.Add("name", nameTaken(form.Name))
				form.Password = ""
				return render()
			}
			return fmt.Errorf("cannot save monster: %w", err)
		}
		if image != nil && monster.Image != "" {
			if err := images.Remove(monster.Image); err != nil {
				log.Warn("Cannot remove replaced image: ", err)
			}
		}
		log.Infof("Updated monster %d (%s)", updated.ID, updated.Name)

		return c.Redirect(http.StatusFound, fmt.Sprintf("/monster/view?id=%d", updated.ID))
	}
}

// MonsterDelete handler removes the monster and its image
func MonsterDelete(db store.IStore, images *upload.Store) echo.HandlerFunc {
	return func(c echo.Context) error {
		monster, err := findMonster(c, db)
		if err != nil {
			return err
		}

		if err := db.DeleteMonster(monster.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound()
			}
			return fmt.Errorf("cannot delete monster %d: %w", monster.ID, err)
		}
		if err := images.Remove(monster.Image); err != nil {
			log.Warn("Cannot remove image of deleted monster: ", err)
		}
		log.Infof("Removed monster %d (%s)", monster.ID, monster.Name)

		return c.Redirect(http.StatusFound, "/monster")
	}
}
