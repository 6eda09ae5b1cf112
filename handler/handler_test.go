package handler

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/monstermash/monstermash/emailer"
	"github.com/monstermash/monstermash/i18n"
	"github.com/monstermash/monstermash/model"
	"github.com/monstermash/monstermash/router"
	"github.com/monstermash/monstermash/store"
	"github.com/monstermash/monstermash/store/jsondb"
	"github.com/monstermash/monstermash/templates"
	"github.com/monstermash/monstermash/upload"
	"github.com/monstermash/monstermash/util"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

// recordingRenderer remembers the last rendered template instead of producing html
type recordingRenderer struct {
	mu    sync.Mutex
	name  string
	data  map[string]interface{}
	theme model.Theme
	csrf  string
}

func (r *recordingRenderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.name = name
	r.data, _ = data.(map[string]interface{})
	r.theme, _ = c.Get(model.ThemeContextKey).(model.Theme)
	r.csrf, _ = c.Get(router.CSRFContextKey).(string)
	_, err := io.WriteString(w, name)
	return err
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []model.Monster
}

func (f *fakeNotifier) NotifyRegistered(ctx context.Context, m model.Monster) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return nil
}

type failingNotifier struct {
	calls int
}

func (f *failingNotifier) NotifyRegistered(ctx context.Context, m model.Monster) error {
	f.calls++
	return errors.New("notification backend down")
}

type captureMailer struct {
	mu   sync.Mutex
	sent []emailer.Message
}

func (m *captureMailer) Send(msg emailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

type testApp struct {
	e        *echo.Echo
	db       *jsondb.JsonDB
	images   *upload.Store
	renderer *recordingRenderer
	notifier *fakeNotifier
	mailer   *captureMailer
	queue    *emailer.Queue
}

const (
	testPassword = "hunter2"
	csrfToken    = "test-csrf-token"
)

func newTestApp(t *testing.T, extra ...Notifier) *testApp {
	t.Helper()
	util.PasswordHashCost = bcrypt.MinCost
	t.Cleanup(func() { util.PasswordHashCost = 14 })
	i18n.SetLanguage("en")
	t.Setenv(util.AdminNameEnvVar, "admin")
	t.Setenv(util.AdminPassEnvVar, testPassword)

	dir := t.TempDir()
	db, err := jsondb.New(filepath.Join(dir, "db"))
	require.NoError(t, err)
	require.NoError(t, db.Init())
	images, err := upload.New(filepath.Join(dir, "uploads"), 1<<20)
	require.NoError(t, err)

	mailer := &captureMailer{}
	queue := emailer.NewQueue(mailer, 8, 0, time.Millisecond)
	welcome, err := emailer.NewWelcome(queue, templates.Mail(), util.DefaultWelcomeRecipient, "", util.DefaultWelcomeSubject, "http://localhost:5000")
	require.NoError(t, err)

	e := router.New(templates.Views(), map[string]string{}, []byte("test-secret"))
	rr := &recordingRenderer{}
	e.Renderer = rr
	notifier := &fakeNotifier{}
	Register(e, db, images, "http://localhost:5000", append([]Notifier{notifier, welcome}, extra...)...)

	return &testApp{e: e, db: db, images: images, renderer: rr, notifier: notifier, mailer: mailer, queue: queue}
}

// seed stores a member with the test password
func (a *testApp) seed(t *testing.T, name, gender string) model.Monster {
	t.Helper()
	m := model.Monster{Name: name, Gender: gender, Role: model.RoleMember, Password: testPassword, HashPassword: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, m.ApplyPassword(util.HashPassword))
	require.NoError(t, a.db.SaveMonster(&m))
	return m
}

func (a *testApp) do(req *http.Request, cookies []*http.Cookie) *httptest.ResponseRecorder {
	for _, c := range cookies {
		if c.Name == router.CSRFField {
			continue
		}
		req.AddCookie(c)
	}
	if req.Method == http.MethodPost {
		req.AddCookie(&http.Cookie{Name: router.CSRFField, Value: csrfToken})
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) get(path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil), cookies)
}

// postForm submits values with a valid CSRF token
func (a *testApp) postForm(path string, values url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	form := url.Values{router.CSRFField: {csrfToken}}
	for k, vs := range values {
		form[k] = vs
	}
	return a.postRaw(path, form, cookies)
}

func (a *testApp) postRaw(path string, values url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return a.do(req, cookies)
}

func (a *testApp) postMultipart(t *testing.T, path string, values url.Values, file []byte, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField(router.CSRFField, csrfToken))
	for k, vs := range values {
		for _, v := range vs {
			require.NoError(t, w.WriteField(k, v))
		}
	}
	part, err := w.CreateFormFile("image_file", "avatar.png")
	require.NoError(t, err)
	_, err = part.Write(file)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return a.do(req, cookies)
}

func (a *testApp) renderedCSRF() string {
	a.renderer.mu.Lock()
	defer a.renderer.mu.Unlock()
	return a.renderer.csrf
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionName {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func (a *testApp) login(t *testing.T, name string) []*http.Cookie {
	t.Helper()
	rec := a.postForm("/login", url.Values{"name": {name}, "password": {testPassword}}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func (a *testApp) mails(t *testing.T) []emailer.Message {
	t.Helper()
	require.NoError(t, a.queue.Close(context.Background()))
	a.mailer.mu.Lock()
	defer a.mailer.mu.Unlock()
	return append([]emailer.Message(nil), a.mailer.sent...)
}

func TestCreateSendsWelcome(t *testing.T) {
	app := newTestApp(t)

	rec := app.postForm("/monster/create", url.Values{"name": {"Drac"}, "gender": {"f"}, "password": {"hunter2"}}, nil)
	require.Equal(t, http.StatusFound, rec.Code)

	drac, err := app.db.GetMonsterByName("Drac")
	require.NoError(t, err)
	assert.Equal(t, "/monster/view?id="+itoa(drac.ID), rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, model.RoleMember, drac.Role)
	assert.Equal(t, model.GenderFemale, drac.Gender)
	assert.NotEmpty(t, drac.PasswordHash)
	assert.NotEqual(t, "hunter2", drac.PasswordHash)
	ok, err := util.VerifyHash(drac.PasswordHash, "hunter2")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, drac.CreatedAt.IsZero())

	require.Len(t, app.notifier.sent, 1)
	assert.Equal(t, drac.ID, app.notifier.sent[0].ID)

	mails := app.mails(t)
	require.Len(t, mails, 1)
	assert.Equal(t, "test@test.com", mails[0].To)
	assert.Equal(t, "Welcome to Monstermash!", mails[0].Subject)
	assert.Contains(t, mails[0].Content, "Drac")
}

func TestRegisterAlias(t *testing.T) {
	app := newTestApp(t)

	rec := app.get("/register", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "create.html", app.renderer.name)

	rec = app.postForm("/register", url.Values{"name": {"Wolf"}, "gender": {"m"}, "password": {"howl123"}}, nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	_, err := app.db.GetMonsterByName("Wolf")
	assert.NoError(t, err)
}

func TestCreateValidationFailure(t *testing.T) {
	app := newTestApp(t)

	rec := app.postForm("/monster/create", url.Values{"name": {"Drac"}, "gender": {"x"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "create.html", app.renderer.name)

	errs := app.renderer.data["errors"].(model.FieldErrors)
	assert.Contains(t, errs, "gender")
	assert.Contains(t, errs, "password")
	assert.NotContains(t, errs, "name")

	form := app.renderer.data["form"].(model.MonsterForm)
	assert.Equal(t, "Drac", form.Name)

	_, err := app.db.GetMonsterByName("Drac")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, app.notifier.sent)
	assert.Empty(t, app.mails(t))
}

func TestCreateDuplicateName(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "Drac", model.GenderFemale)

	rec := app.postForm("/monster/create", url.Values{"name": {"Drac"}, "gender": {"f"}, "password": {"hunter2"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	errs := app.renderer.data["errors"].(model.FieldErrors)
	assert.Contains(t, errs["name"], "already been taken")
	assert.Empty(t, app.notifier.sent)
}

func TestCreateWithImage(t *testing.T) {
	app := newTestApp(t)

	rec := app.postMultipart(t, "/monster/create", url.Values{"name": {"Drac"}, "gender": {"f"}, "password": {"hunter2"}}, pngHeader, nil)
	require.Equal(t, http.StatusFound, rec.Code)

	drac, err := app.db.GetMonsterByName("Drac")
	require.NoError(t, err)
	require.NotEmpty(t, drac.Image)
	_, err = os.Stat(filepath.Join(app.images.Dir(), drac.Image))
	assert.NoError(t, err)
}

func TestCreateRejectsNonImageUpload(t *testing.T) {
	app := newTestApp(t)

	rec := app.postMultipart(t, "/monster/create", url.Values{"name": {"Drac"}, "gender": {"f"}, "password": {"hunter2"}}, []byte("plain text"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	errs := app.renderer.data["errors"].(model.FieldErrors)
	assert.Contains(t, errs, "image_file")

	_, err := app.db.GetMonsterByName("Drac")
	assert.ErrorIs(t, err, store.ErrNotFound)
	entries, err := os.ReadDir(app.images.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestViewNotFound(t *testing.T) {
	app := newTestApp(t)

	rec := app.get("/monster/view?id=999999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error.html", app.renderer.name)
	assert.Equal(t, http.StatusNotFound, app.renderer.data["code"])

	rec = app.get("/monster/view?id=abc", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.get("/profile/999999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = app.get("/monster/view", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestView(t *testing.T) {
	app := newTestApp(t)
	drac := app.seed(t, "Drac", model.GenderFemale)

	for _, path := range []string{"/monster/view?id=" + itoa(drac.ID), "/profile/" + itoa(drac.ID)} {
		rec := app.get(path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "view.html", app.renderer.name)
		assert.Equal(t, drac.ID, app.renderer.data["model"].(model.Monster).ID)
		assert.True(t, strings.HasPrefix(string(app.renderer.data["qrcode"].(template.URL)), "data:image/png"))
	}
}

func TestIndex(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "Drac", model.GenderFemale)
	app.seed(t, "Wolf", model.GenderMale)

	rec := app.get("/monster?gender=f", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := app.renderer.data["page"].(model.MonsterPage)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Drac", page.Items[0].Name)

	// malformed values are ignored
	rec = app.get("/monster?page=abc&id=x&sort=-id", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page = app.renderer.data["page"].(model.MonsterPage)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, "Wolf", page.Items[0].Name)

	rec = app.get("/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "index.html", app.renderer.name)
}

func TestDeleteRequiresAdmin(t *testing.T) {
	app := newTestApp(t)
	drac := app.seed(t, "Drac", model.GenderFemale)
	app.seed(t, "Wolf", model.GenderMale)

	// anonymous
	rec := app.postForm("/monster/delete?id="+itoa(drac.ID), nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Only administrators can delete users.", app.renderer.data["message"])

	// member
	rec = app.postForm("/monster/delete?id="+itoa(drac.ID), nil, app.login(t, "Wolf"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	_, err := app.db.GetMonsterByID(drac.ID)
	assert.NoError(t, err)
}

func TestDeleteByAdmin(t *testing.T) {
	app := newTestApp(t)
	drac := app.seed(t, "Drac", model.GenderFemale)
	admin := app.login(t, "admin")

	// delete only accepts POST
	rec := app.get("/monster/delete?id="+itoa(drac.ID), admin)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = app.postForm("/monster/delete?id="+itoa(drac.ID), nil, admin)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/monster", rec.Header().Get(echo.HeaderLocation))

	_, err := app.db.GetMonsterByID(drac.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec = app.postForm("/monster/delete?id="+itoa(drac.ID), nil, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateRequiresLogin(t *testing.T) {
	app := newTestApp(t)
	drac := app.seed(t, "Drac", model.GenderFemale)

	rec := app.get("/monster/update?id="+itoa(drac.ID), nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login?next="+url.QueryEscape("/monster/update?id="+itoa(drac.ID)), rec.Header().Get(echo.HeaderLocation))

	rec = app.postForm("/monster/update?id="+itoa(drac.ID), url.Values{"name": {"Hacked"}, "gender": {"m"}}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get(echo.HeaderLocation))

	unchanged, err := app.db.GetMonsterByID(drac.ID)
	require.NoError(t, err)
	assert.Equal(t, "Drac", unchanged.Name)
	assert.Equal(t, model.GenderFemale, unchanged.Gender)
}

func TestUpdate(t *testing.T) {
	app := newTestApp(t)
	drac := app.seed(t, "Drac", model.GenderFemale)
	cookies := app.login(t, "Drac")

	rec := app.get("/monster/update?id="+itoa(drac.ID), cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "update.html", app.renderer.name)
	assert.Equal(t, "Drac", app.renderer.data["form"].(model.MonsterForm).Name)

	rec = app.postMultipart(t, "/monster/update?id="+itoa(drac.ID), url.Values{"name": {"Dracula"}, "gender": {"f"}, "email": {"drac@example.com"}}, pngHeader, cookies)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/monster/view?id="+itoa(drac.ID), rec.Header().Get(echo.HeaderLocation))

	updated, err := app.db.GetMonsterByID(drac.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dracula", updated.Name)
	assert.Equal(t, "drac@example.com", updated.Email)
	assert.Equal(t, drac.PasswordHash, updated.PasswordHash)
	assert.Equal(t, model.RoleMember, updated.Role)
	require.NotEmpty(t, updated.Image)
	firstImage := updated.Image

	// a second upload replaces the first image and a new password is hashed
	rec = app.postMultipart(t, "/monster/update?id="+itoa(drac.ID), url.Values{"name": {"Dracula"}, "gender": {"f"}, "password": {"newpass1"}}, pngHeader, cookies)
	require.Equal(t, http.StatusFound, rec.Code)
	updated, err = app.db.GetMonsterByID(drac.ID)
	require.NoError(t, err)
	assert.NotEqual(t, firstImage, updated.Image)
	_, err = os.Stat(filepath.Join(app.images.Dir(), firstImage))
	assert.True(t, os.IsNotExist(err))
	ok, err := util.VerifyHash(updated.PasswordHash, "newpass1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUpdateValidationFailureKeepsInput(t *testing.T) {
	app := newTestApp(t)
	drac := app.seed(t, "Drac", model.GenderFemale)
	app.seed(t, "Wolf", model.GenderMale)
	cookies := app.login(t, "Drac")

	rec := app.postForm("/monster/update?id="+itoa(drac.ID), url.Values{"name": {"Wolf"}, "gender": {"f"}, "email": {"not-an-email"}}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "update.html", app.renderer.name)

	errs := app.renderer.data["errors"].(model.FieldErrors)
	assert.Contains(t, errs, "name")
	assert.Contains(t, errs, "email")
	form := app.renderer.data["form"].(model.MonsterForm)
	assert.Equal(t, "Wolf", form.Name)
	assert.Equal(t, "not-an-email", form.Email)

	unchanged, err := app.db.GetMonsterByID(drac.ID)
	require.NoError(t, err)
	assert.Equal(t, "Drac", unchanged.Name)
}

func TestUpdateNotFound(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "Drac", model.GenderFemale)
	cookies := app.login(t, "Drac")

	rec := app.get("/monster/update?id=999999", cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestThemeFollowsGender(t *testing.T) {
	app := newTestApp(t)
	drac := app.seed(t, "Drac", model.GenderFemale)
	app.seed(t, "Wolf", model.GenderMale)
	path := "/monster/view?id=" + itoa(drac.ID)

	app.get(path, nil)
	assert.Equal(t, "default", app.renderer.theme.Name)

	app.get(path, app.login(t, "Drac"))
	assert.Equal(t, "feminine", app.renderer.theme.Name)
	assert.Equal(t, []string{"css/feminine.css"}, app.renderer.theme.Stylesheets())

	app.get(path, app.login(t, "Wolf"))
	assert.Equal(t, "default", app.renderer.theme.Name)
	assert.Equal(t, []string{"css/site.css"}, app.renderer.theme.Stylesheets())
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "Drac", model.GenderFemale)

	rec := app.get("/login?next=/monster/update?id=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "login.html", app.renderer.name)

	rec = app.postForm("/login", url.Values{"name": {"Drac"}, "password": {"wrong"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, app.renderer.data["error"])

	rec = app.postForm("/login", url.Values{"name": {"Nobody"}, "password": {"wrong"}}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, app.renderer.data["error"])

	rec = app.postForm("/login", url.Values{"name": {"Drac"}, "password": {testPassword}, "next": {"/monster/view?id=2"}}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/monster/view?id=2", rec.Header().Get(echo.HeaderLocation))

	rec = app.postForm("/login", url.Values{"name": {"Drac"}, "password": {testPassword}, "next": {"//evil.example.com"}}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/monster", rec.Header().Get(echo.HeaderLocation))
}

func TestLogoutAndDeletedPrincipal(t *testing.T) {
	app := newTestApp(t)
	drac := app.seed(t, "Drac", model.GenderFemale)
	cookies := app.login(t, "Drac")

	app.get("/monster", cookies)
	assert.Equal(t, "Drac", app.renderer.data["baseData"].(model.BaseData).CurrentUser)

	rec := app.get("/logout", cookies)
	require.Equal(t, http.StatusFound, rec.Code)

	// a deleted account is treated as anonymous
	require.NoError(t, app.db.DeleteMonster(drac.ID))
	app.get("/monster", cookies)
	assert.Empty(t, app.renderer.data["baseData"].(model.BaseData).CurrentUser)
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/monster/view?id=1", safeNext("/monster/view?id=1"))
	assert.Equal(t, "/monster", safeNext("https://evil.example.com"))
	assert.Equal(t, "/monster", safeNext("//evil.example.com"))
	assert.Equal(t, "/monster", safeNext(""))
	assert.Equal(t, "/monster", safeNext("/\\evil.example.com"))
	assert.Equal(t, "/monster", safeNext("/\t/evil.example.com"))
	assert.Equal(t, "/monster", safeNext("/\n/evil.example.com"))
	assert.Equal(t, "/monster", safeNext("/\r\n/evil.example.com"))
	assert.Equal(t, "/monster", safeNext("/ /evil.example.com"))
	assert.Equal(t, "/monster", safeNext("/%zz"))
	assert.Equal(t, "/monster?page=2&sort=-name", safeNext("/monster?page=2&sort=-name"))
}

func TestLoginIgnoresSmuggledNext(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "Drac", model.GenderFemale)

	rec := app.postForm("/login", url.Values{"name": {"Drac"}, "password": {testPassword}, "next": {"/\t/evil.example.com"}}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/monster", rec.Header().Get(echo.HeaderLocation))
}

func TestLoginRememberMe(t *testing.T) {
	app := newTestApp(t)
	app.seed(t, "Drac", model.GenderFemale)

	rec := app.postForm("/login", url.Values{"name": {"Drac"}, "password": {testPassword}}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, 0, sessionCookie(t, rec).MaxAge)

	rec = app.postForm("/login", url.Values{"name": {"Drac"}, "password": {testPassword}, "remember": {"1"}}, nil)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, 30*24*60*60, sessionCookie(t, rec).MaxAge)
}

func TestPostWithoutCSRFTokenIsRejected(t *testing.T) {
	app := newTestApp(t)
	drac := app.seed(t, "Drac", model.GenderFemale)
	admin := app.login(t, "admin")

	// no token at all
	req := httptest.NewRequest(http.MethodPost, "/monster/create",
		strings.NewReader(url.Values{"name": {"Wolf"}, "gender": {"m"}, "password": {"howl123"}}.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	rec := httptest.NewRecorder()
	app.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	_, err := app.db.GetMonsterByName("Wolf")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, app.notifier.sent)

	// a token that does not match the cookie
	rec = app.postRaw("/monster/delete?id="+itoa(drac.ID), url.Values{router.CSRFField: {"forged"}}, admin)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	_, err = app.db.GetMonsterByID(drac.ID)
	assert.NoError(t, err)

	rec = app.postRaw("/login", url.Values{"name": {"Drac"}, "password": {testPassword}}, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestFormsCarryCSRFToken(t *testing.T) {
	app := newTestApp(t)

	rec := app.get("/monster/create", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	token := app.renderedCSRF()
	require.NotEmpty(t, token)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == router.CSRFField {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, token, cookie.Value)
}

func TestCreateSurvivesFailingNotifiers(t *testing.T) {
	failing := &failingNotifier{}
	app := newTestApp(t, failing)
	// a closed mail queue refuses the welcome mail
	require.NoError(t, app.queue.Close(context.Background()))

	rec := app.postForm("/monster/create", url.Values{"name": {"Drac"}, "gender": {"f"}, "password": {"hunter2"}}, nil)
	require.Equal(t, http.StatusFound, rec.Code)

	drac, err := app.db.GetMonsterByName("Drac")
	require.NoError(t, err)
	assert.Equal(t, "/monster/view?id="+itoa(drac.ID), rec.Header().Get(echo.HeaderLocation))
	assert.Equal(t, 1, failing.calls)
	assert.Len(t, app.notifier.sent, 1)
	assert.Empty(t, app.mails(t))
}

func TestConcurrentCreateKeepsNamesUnique(t *testing.T) {
	app := newTestApp(t)

	const workers = 4
	codes := make([]int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := app.postForm("/monster/create", url.Values{"name": {"Drac"}, "gender": {"f"}, "password": {"hunter2"}}, nil)
			codes[i] = rec.Code
		}(i)
	}
	wg.Wait()

	created := 0
	for _, code := range codes {
		if code == http.StatusFound {
			created++
			continue
		}
		assert.Equal(t, http.StatusOK, code)
	}
	assert.Equal(t, 1, created)

	page, err := app.db.SearchMonsters(model.MonsterSearch{Name: "Drac"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	app.notifier.mu.Lock()
	defer app.notifier.mu.Unlock()
	assert.Len(t, app.notifier.sent, 1)
}
