package model

// ThemeContextKey is the echo context key holding the request's Theme
const ThemeContextKey = "theme"

// AssetBundle is a named group of stylesheets rendered by the base layout
type AssetBundle struct {
	Name string
	CSS  []string
}

// Theme selects a template set and the asset bundles rendered with it.
// Templates missing from a theme fall back to the default set.
type Theme struct {
	Name    string
	Bundles map[string]AssetBundle
}

// AppBundle is the application's main asset bundle
const AppBundle = "app"

// DefaultTheme is used for anonymous visitors and male monsters
func DefaultTheme() Theme {
	return Theme{
		Name: "default",
		Bundles: map[string]AssetBundle{
			AppBundle: {Name: AppBundle, CSS: []string{"css/site.css"}},
		},
	}
}

// FeminineTheme is used when the signed-in monster's gender is f
func FeminineTheme() Theme {
	t := DefaultTheme()
	t.Name = "feminine"
	t.OverrideCSS(AppBundle, "css/feminine.css")
	return t
}

// OverrideCSS replaces the stylesheets of one bundle
func (t *Theme) OverrideCSS(bundle string, css ...string) {
	b := t.Bundles[bundle]
	b.Name = bundle
	b.CSS = css
	t.Bundles[bundle] = b
}

// Stylesheets returns the stylesheets of every bundle, app bundle first
func (t Theme) Stylesheets() []string {
	var out []string
	if b, ok := t.Bundles[AppBundle]; ok {
		out = append(out, b.CSS...)
	}
	for name, b := range t.Bundles {
		if name == AppBundle {
			continue
		}
		out = append(out, b.CSS...)
	}
	return out
}
