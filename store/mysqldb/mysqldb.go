// Package mysqldb provides a MySQL storage backend for Monstermash
package mysqldb

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/labstack/gommon/log"

	"github.com/monstermash/monstermash/model"
	"github.com/monstermash/monstermash/store"
)

//go:embed schema.sql
var schema string

const monsterColumns = "id, name, email, gender, role, password_hash, image, created_at, updated_at"

// sortColumns maps listing sort keys to columns
var sortColumns = map[string]string{
	"id":         "id",
	"name":       "name",
	"gender":     "gender",
	"role":       "role",
	"created_at": "created_at",
}

// MySQLDB - Representation of MySQL database backend
type MySQLDB struct {
	conn *sql.DB
}

// New returns pointer to MySQL database
func New(uname string, pwd string, host string, port int, database string, tls string) (*MySQLDB, error) {
	// Set connection config
	config := mysql.NewConfig()
	config.User = uname
	config.Passwd = pwd
	config.Net = "tcp"
	config.Addr = fmt.Sprintf("%s:%d", host, port)
	config.DBName = database
	config.MultiStatements = true
	config.ParseTime = true
	config.TLSConfig = tls

	// Open connection pool
	conn, err := sql.Open("mysql", config.FormatDSN())
	if err != nil {
		return nil, err
	}
	conn.SetConnMaxLifetime(time.Minute * 3)
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(10)

	// Test the connection
	if err := conn.Ping(); err != nil {
		return nil, err
	}

	return NewWithConn(conn), nil
}

// NewWithConn wraps an already opened connection pool
func NewWithConn(conn *sql.DB) *MySQLDB {
	return &MySQLDB{conn: conn}
}

// Init creates the schema and seeds the administrator into an empty table
func (o *MySQLDB) Init() error {
	if _, err := o.conn.Exec(schema); err != nil {
		return fmt.Errorf("cannot create schema: %w", err)
	}

	var count int
	if err := o.conn.QueryRow("SELECT COUNT(*) FROM monsters").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	log.Info("Seeding administrator account")
	admin, err := store.DefaultAdmin()
	if err != nil {
		return err
	}
	return o.SaveMonster(&admin)
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMonster(row scanner) (model.Monster, error) {
	m := model.Monster{}
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Email,
		&m.Gender,
		&m.Role,
		&m.PasswordHash,
		&m.Image,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

// searchFilter builds the WHERE clause of a listing query
func searchFilter(search model.MonsterSearch) (string, []interface{}) {
	var clauses []string
	var args []interface{}

	if search.ID > 0 {
		clauses = append(clauses, "id = ?")
		args = append(args, search.ID)
	}
	if search.Name != "" {
		clauses = append(clauses, "name LIKE ?")
		args = append(args, "%"+escapeLike(search.Name)+"%")
	}
	if search.Gender != "" {
		clauses = append(clauses, "gender = ?")
		args = append(args, search.Gender)
	}
	if search.Role != "" {
		clauses = append(clauses, "role = ?")
		args = append(args, search.Role)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (o *MySQLDB) SearchMonsters(search model.MonsterSearch) (model.MonsterPage, error) {
	search.Normalize()
	page := model.MonsterPage{Page: search.Page, PerPage: search.PerPage}

	where, args := searchFilter(search)
	if err := o.conn.QueryRow("SELECT COUNT(*) FROM monsters"+where, args...).Scan(&page.Total); err != nil {
		return page, err
	}

	field, desc, _ := search.SortField()
	order := sortColumns[field]
	if desc {
		order += " DESC"
	}

	query := "SELECT " + monsterColumns + " FROM monsters" + where + " ORDER BY " + order + " LIMIT ? OFFSET ?"
	rows, err := o.conn.Query(query, append(args, search.PerPage, search.Offset())...)
	if err != nil {
		return page, err
	}
	defer rows.Close()

	for rows.Next() {
		m, err := scanMonster(rows)
		if err != nil {
			return page, err
		}
		page.Items = append(page.Items, m)
	}
	return page, rows.Err()
}

func (o *MySQLDB) GetMonsterByID(id int64) (model.Monster, error) {
	row := o.conn.QueryRow("SELECT "+monsterColumns+" FROM monsters WHERE id = ?", id)
	m, err := scanMonster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return m, store.ErrNotFound
	}
	return m, err
}

func (o *MySQLDB) GetMonsterByName(name string) (model.Monster, error) {
	row := o.conn.QueryRow("SELECT "+monsterColumns+" FROM monsters WHERE name = ?", name)
	m, err := scanMonster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return m, store.ErrNotFound
	}
	return m, err
}

func (o *MySQLDB) SaveMonster(monster *model.Monster) error {
	if monster.ID == 0 {
		res, err := o.conn.Exec(
			"INSERT INTO monsters (name, email, gender, role, password_hash, image, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?);",
			monster.Name,
			monster.Email,
			monster.Gender,
			monster.Role,
			monster.PasswordHash,
			monster.Image,
			monster.CreatedAt,
			monster.UpdatedAt,
		)
		if err != nil {
			return mapWriteError(err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		monster.ID = id
		return nil
	}

	_, err := o.conn.Exec(
		"UPDATE monsters SET name = ?, email = ?, gender = ?, role = ?, password_hash = ?, image = ?, updated_at = ? WHERE id = ?;",
		monster.Name,
		monster.Email,
		monster.Gender,
		monster.Role,
		monster.PasswordHash,
		monster.Image,
		monster.UpdatedAt,
		monster.ID,
	)
	return mapWriteError(err)
}

// errDupEntry is the MySQL error number of a unique key violation
const errDupEntry = 1062

// mapWriteError turns a violation of monsters_name_unique into store.ErrDuplicateName
func mapWriteError(err error) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errDupEntry {
		return store.ErrDuplicateName
	}
	return err
}

func (o *MySQLDB) DeleteMonster(id int64) error {
	res, err := o.conn.Exec("DELETE FROM monsters WHERE id = ?;", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Close releases the connection pool
func (o *MySQLDB) Close() error {
	return o.conn.Close()
}
