// Package i18n translates interface strings. English strings are the message keys.
package i18n

import (
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// german holds the translations of the English message keys
var german = []struct{ key, msg string }{
	{"Monsters", "Monster"},
	{"Monster", "Monster"},
	{"Create Monster", "Monster anlegen"},
	{"Update Monster", "Monster bearbeiten"},
	{"Update", "Bearbeiten"},
	{"Delete", "Löschen"},
	{"Save", "Speichern"},
	{"Search", "Suchen"},
	{"Register", "Registrieren"},
	{"Login", "Anmelden"},
	{"Logout", "Abmelden"},
	{"Remember me", "Angemeldet bleiben"},
	{"Name", "Name"},
	{"Email", "E-Mail"},
	{"Gender", "Geschlecht"},
	{"Role", "Rolle"},
	{"Password", "Passwort"},
	{"Image", "Bild"},
	{"Created", "Erstellt"},
	{"male", "männlich"},
	{"female", "weiblich"},
	{"Previous", "Zurück"},
	{"Next", "Weiter"},
	{"Page %d of %d", "Seite %d von %d"},
	{"No monsters found.", "Keine Monster gefunden."},
	{"Are you sure you want to delete this item?", "Wollen Sie diesen Eintrag wirklich löschen?"},
	{"Incorrect name or password.", "Falscher Name oder falsches Passwort."},
	{"%s cannot be blank.", "%s darf nicht leer sein."},
	{"%s should contain at least %s characters.", "%s muss mindestens %s Zeichen enthalten."},
	{"%s should contain at most %s characters.", "%s darf höchstens %s Zeichen enthalten."},
	{"%s is not a valid email address.", "%s ist keine gültige E-Mail-Adresse."},
	{"%s is invalid.", "%s ist ungültig."},
	{"Name \"%s\" has already been taken.", "Der Name \"%s\" ist bereits vergeben."},
	{"The requested page does not exist.", "Die angeforderte Seite existiert nicht."},
	{"Only administrators can delete users.", "Nur Administratoren dürfen Benutzer löschen."},
	{"You are not allowed to perform this action.", "Sie dürfen diese Aktion nicht ausführen."},
	{"Unable to verify your data submission.", "Ihre Daten konnten nicht verifiziert werden."},
}

func init() {
	for _, e := range german {
		if err := message.SetString(language.German, e.key, e.msg); err != nil {
			panic(err)
		}
	}
}

var (
	mu      sync.RWMutex
	printer = message.NewPrinter(language.English)
	current = language.English
)

// SetLanguage switches the process wide language. Unknown tags fall back to English.
func SetLanguage(lang string) {
	tag, err := language.Parse(lang)
	if err != nil {
		tag = language.English
	}
	matcher := language.NewMatcher([]language.Tag{language.English, language.German})
	_, idx, _ := matcher.Match(tag)
	supported := []language.Tag{language.English, language.German}[idx]

	mu.Lock()
	defer mu.Unlock()
	current = supported
	printer = message.NewPrinter(supported)
}

// Language returns the active language tag
func Language() string {
	mu.RLock()
	defer mu.RUnlock()
	return current.String()
}

// T translates key and formats it with args
func T(key string, args ...interface{}) string {
	mu.RLock()
	p := printer
	mu.RUnlock()
	return p.Sprintf(key, args...)
}
