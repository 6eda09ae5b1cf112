package model

import (
	"time"
)

// Roles known to the access policy
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Genders accepted on the profile form
const (
	GenderMale   = "m"
	GenderFemale = "f"
)

// Monster model
type Monster struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Gender       string    `json:"gender"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"password_hash"`
	Image        string    `json:"image"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Password is the submitted plaintext, it is never persisted.
	Password string `json:"-"`
	// HashPassword asks ApplyPassword to replace PasswordHash with a hash of Password.
	HashPassword bool `json:"-"`
}

// ApplyPassword hashes the plaintext password into PasswordHash when requested.
// The plaintext is cleared afterwards.
func (m *Monster) ApplyPassword(hash func(string) (string, error)) error {
	if !m.HashPassword || m.Password == "" {
		return nil
	}
	h, err := hash(m.Password)
	if err != nil {
		return err
	}
	m.PasswordHash = h
	m.Password = ""
	return nil
}

// MonsterForm holds the fields a visitor can submit on the create and update forms
type MonsterForm struct {
	Name     string `form:"name" validate:"required,min=2,max=64"`
	Email    string `form:"email" validate:"omitempty,email,max=255"`
	Gender   string `form:"gender" validate:"required,oneof=m f"`
	Password string `form:"password" validate:"omitempty,min=6,max=72"`
}

// FormFromMonster fills a form with the current values of a record
func FormFromMonster(m Monster) MonsterForm {
	return MonsterForm{
		Name:   m.Name,
		Email:  m.Email,
		Gender: m.Gender,
	}
}

// Apply copies the submitted fields onto the record
func (f MonsterForm) Apply(m *Monster) {
	m.Name = f.Name
	m.Email = f.Email
	m.Gender = f.Gender
	if f.Password != "" {
		m.Password = f.Password
		m.HashPassword = true
	}
}
