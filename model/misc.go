package model

// BaseData struct to pass value to the base template
type BaseData struct {
	Active      string
	CurrentUser string
	CurrentID   int64
	Admin       bool
}

// FieldErrors maps a form field name to its validation message
type FieldErrors map[string]string

// Add keeps the first message registered for a field
func (e FieldErrors) Add(field, message string) {
	if _, ok := e[field]; !ok {
		e[field] = message
	}
}
