// Package assets embeds the stylesheets served under /static.
package assets

import "embed"

//go:embed css/*.css
var Files embed.FS
