package gosieve

import (
	"regexp"
	"strings"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newGORMMySQLMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      mockDB,
		SkipInitializeWithVersion: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "mysql", db.Debug(), mock, nil
}

func newGORMPostgresMock() (string, *gorm.DB, sqlmock.Sqlmock, error) {
	mockDB, mock, err := sqlmock.New()
	if err != nil {
		return "", nil, nil, err
	}

	dialector := postgres.New(postgres.Config{
		Conn: mockDB,
	})

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return "", nil, nil, err
	}

	return "postgres", db.Debug(), mock, nil
}

// sqlPattern turns a query template into an anchored regexp matching the
// query of either dialect: {c} stands for an identifier quote and {p} for a
// placeholder.
func sqlPattern(tmpl string) string {
	pattern := regexp.QuoteMeta(tmpl)
	pattern = strings.ReplaceAll(pattern, `\{c\}`, "[`\"]")
	pattern = strings.ReplaceAll(pattern, `\{p\}`, `(\?|\$\d+)`)

	return "^" + pattern + "$"
}

type tRole int

const (
	roleGuest tRole = iota
	roleUser
	roleAdmin
)

func init() {
	RegisterEnum(map[string]tRole{
		"guest": roleGuest,
		"user":  roleUser,
		"admin": roleAdmin,
	})
}

type tAddress struct {
	City    string
	Country *string
}

type tAudit struct {
	CreatedAt time.Time
	UpdatedBy string
}

type tUser struct {
	tAudit

	ID      uint
	Name    string `json:"full_name"`
	Age     int
	Level   uint8
	Score   float64
	Active  bool
	Email   *string
	Nick    string `gorm:"column:nickname"`
	Role    tRole
	Tags    []string
	Address tAddress
	Manager *tUser
	Attrs   map[string]any
	Extra   any
}

func (u tUser) DisplayName() string {
	return strings.ToUpper(u.Name)
}

func ptr[V any](v V) *V {
	return &v
}

func ids(users []tUser) []uint {
	ret := make([]uint, 0, len(users))
	for _, u := range users {
		ret = append(ret, u.ID)
	}

	return ret
}
