// Package templates embeds the html views and mail templates.
package templates

import (
	"embed"
	"io/fs"
)

//go:embed *.html feminine/*.html mail/*.html
var files embed.FS

// Views returns the page templates. Theme overrides live in sub directories named after the theme.
func Views() fs.FS {
	return files
}

// Mail returns the mail templates
func Mail() fs.FS {
	sub, err := fs.Sub(files, "mail")
	if err != nil {
		panic(err)
	}
	return sub
}
