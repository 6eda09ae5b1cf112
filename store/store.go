package store

import (
	"errors"
	"time"

	"github.com/monstermash/monstermash/model"
	"github.com/monstermash/monstermash/util"
)

// ErrNotFound is returned when no monster has the requested id or name
var ErrNotFound = errors.New("monster not found")

// ErrDuplicateName is returned by SaveMonster when another monster already uses the name
var ErrDuplicateName = errors.New("monster name already taken")

type IStore interface {
	Init() error
	SearchMonsters(search model.MonsterSearch) (model.MonsterPage, error)
	GetMonsterByID(id int64) (model.Monster, error)
	GetMonsterByName(name string) (model.Monster, error)
	// SaveMonster inserts the monster when its ID is zero and assigns the new ID.
	// Names are compared case-insensitively and must stay unique.
	SaveMonster(monster *model.Monster) error
	DeleteMonster(id int64) error
}

// DefaultAdmin builds the administrator seeded into an empty store
func DefaultAdmin() (model.Monster, error) {
	admin := model.Monster{
		Name:         util.LookupEnvOrString(util.AdminNameEnvVar, util.DefaultAdminName),
		Gender:       util.LookupEnvOrString(util.AdminGenderEnvVar, util.DefaultAdminGender),
		Role:         model.RoleAdmin,
		Password:     util.LookupEnvOrString(util.AdminPassEnvVar, util.DefaultAdminPassword),
		HashPassword: true,
	}
	if err := admin.ApplyPassword(util.HashPassword); err != nil {
		return admin, err
	}
	admin.CreatedAt = time.Now().UTC()
	admin.UpdatedAt = admin.CreatedAt
	return admin, nil
}
