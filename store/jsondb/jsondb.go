package jsondb

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/sdomino/scribble"

	"github.com/monstermash/monstermash/model"
	"github.com/monstermash/monstermash/store"
)

const (
	monstersCollection  = "monsters"
	sequencesCollection = "sequences"
)

type sequence struct {
	Value int64 `json:"value"`
}

type JsonDB struct {
	conn   *scribble.Driver
	dbPath string
	// mu serializes writes so id allocation and the name check see a stable collection
	mu sync.RWMutex
}

// New returns a new pointer JsonDB
func New(dbPath string) (*JsonDB, error) {
	conn, err := scribble.New(dbPath, nil)
	if err != nil {
		return nil, err
	}
	ans := JsonDB{
		conn:   conn,
		dbPath: dbPath,
	}
	return &ans, nil
}

func (o *JsonDB) Init() error {
	var monstersPath string = path.Join(o.dbPath, monstersCollection)
	var sequencesPath string = path.Join(o.dbPath, sequencesCollection)

	// create directories if they do not exist
	for _, p := range []string{monstersPath, sequencesPath} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			if err := os.MkdirAll(p, os.ModePerm); err != nil {
				return err
			}
		}
	}

	// seed the administrator
	monsters, err := o.readAll()
	if err != nil {
		return err
	}
	if len(monsters) == 0 {
		admin, err := store.DefaultAdmin()
		if err != nil {
			return err
		}
		return o.SaveMonster(&admin)
	}
	return nil
}

// readAll must be called with mu held, or before the store is shared
func (o *JsonDB) readAll() ([]model.Monster, error) {
	var monsters []model.Monster

	records, err := o.conn.ReadAll(monstersCollection)
	if err != nil {
		return monsters, err
	}
	for _, f := range records {
		monster := model.Monster{}
		if err := json.Unmarshal([]byte(f), &monster); err != nil {
			return monsters, fmt.Errorf("cannot decode monster json structure: %v", err)
		}
		monsters = append(monsters, monster)
	}
	return monsters, nil
}

// SearchMonsters filters, sorts and paginates every stored monster
func (o *JsonDB) SearchMonsters(search model.MonsterSearch) (model.MonsterPage, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	monsters, err := o.readAll()
	if err != nil {
		return model.MonsterPage{}, err
	}
	return search.Apply(monsters), nil
}

func (o *JsonDB) GetMonsterByID(id int64) (model.Monster, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.getByID(id)
}

func (o *JsonDB) getByID(id int64) (model.Monster, error) {
	monster := model.Monster{}
	if id <= 0 {
		return monster, store.ErrNotFound
	}
	if err := o.conn.Read(monstersCollection, resourceName(id), &monster); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return monster, store.ErrNotFound
		}
		return monster, err
	}
	return monster, nil
}

func (o *JsonDB) GetMonsterByName(name string) (model.Monster, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.getByName(name)
}

func (o *JsonDB) getByName(name string) (model.Monster, error) {
	monsters, err := o.readAll()
	if err != nil {
		return model.Monster{}, err
	}
	for _, m := range monsters {
		if strings.EqualFold(m.Name, name) {
			return m, nil
		}
	}
	return model.Monster{}, store.ErrNotFound
}

func (o *JsonDB) SaveMonster(monster *model.Monster) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.nameOwner(monster.Name, monster.ID); err != nil {
		return err
	}
	if monster.ID == 0 {
		id, err := o.nextID()
		if err != nil {
			return err
		}
		monster.ID = id
	}
	return o.conn.Write(monstersCollection, resourceName(monster.ID), monster)
}

// nameOwner returns the other monster holding name, failing with store.ErrDuplicateName.
// It must be called with mu held.
func (o *JsonDB) nameOwner(name string, selfID int64) (model.Monster, error) {
	existing, err := o.getByName(name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return model.Monster{}, nil
	case err != nil:
		return model.Monster{}, err
	case existing.ID != selfID:
		return existing, store.ErrDuplicateName
	}
	return model.Monster{}, nil
}

func (o *JsonDB) DeleteMonster(id int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, err := o.getByID(id); err != nil {
		return err
	}
	return o.conn.Delete(monstersCollection, resourceName(id))
}

// nextID must be called with mu held
func (o *JsonDB) nextID() (int64, error) {
	seq := sequence{}
	if err := o.conn.Read(sequencesCollection, monstersCollection, &seq); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, err
	}
	seq.Value++
	if err := o.conn.Write(sequencesCollection, monstersCollection, seq); err != nil {
		return 0, err
	}
	return seq.Value, nil
}

func resourceName(id int64) string {
	return strconv.FormatInt(id, 10)
}
