package option

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"smallbiznis-loyaltycore/pkg/db/pagination"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QueryOption mutates a query before it is executed by a repository.
type QueryOption func(*gorm.DB) *gorm.DB

type Operator string

const (
	EQ        Operator = "="
	NEQ       Operator = "<>"
	GT        Operator = ">"
	GTE       Operator = ">="
	LT        Operator = "<"
	LTE       Operator = "<="
	IN        Operator = "IN"
	NOTIN     Operator = "NOT IN"
	ISNULL    Operator = "IS NULL"
	ISNOTNULL Operator = "IS NOT NULL"
)

var identifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_.]*$`)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

// ApplyOperator adds one WHERE clause per condition. Conditions with an
// unsafe field name are skipped.
func ApplyOperator(conds ...Condition) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		for _, c := range conds {
			if !identifier.MatchString(c.Field) {
				continue
			}

			switch c.Operator {
			case ISNULL, ISNOTNULL:
				db = db.Where(fmt.Sprintf("%s %s", c.Field, c.Operator))
			case IN, NOTIN:
				db = db.Where(fmt.Sprintf("%s %s ?", c.Field, c.Operator), c.Value)
			case EQ, NEQ, GT, GTE, LT, LTE:
				db = db.Where(fmt.Sprintf("%s %s ?", c.Field, c.Operator), c.Value)
			}
		}
		return db
	}
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

// WithSortBy orders the query. SortBy defaults to created_at and must be
// present in Allow when Allow is set. Rows with equal sort keys are ordered
// by id in the same direction.
func WithSortBy(s QuerySortBy) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		field := s.SortBy
		if field == "" {
			field = "created_at"
		}

		if s.Allow != nil && !s.Allow[field] {
			return db
		}
		if !identifier.MatchString(field) {
			return db
		}

		desc := strings.EqualFold(s.OrderBy, "desc")
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: field}, Desc: desc})
		if field != "id" {
			db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc})
		}
		return db
	}
}

func WithLimit(limit int) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	}
}

// ApplyPagination applies a keyset cursor on (created_at, id) ascending and
// fetches one extra row so callers can detect HasMore.
func ApplyPagination(p pagination.Pagination) QueryOption {
	return func(db *gorm.DB) *gorm.DB {
		if p.Cursor != "" {
			cursor, err := pagination.DecodeCursor(p.Cursor)
			if err == nil && cursor.ID != "" {
				if createdAt, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt); err == nil {
					db = db.Where("(created_at > ?) OR (created_at = ? AND id > ?)", createdAt, createdAt, cursor.ID)
				} else {
					db = db.Where("id > ?", cursor.ID)
				}
			}
		}

		limit := p.Limit
		if limit <= 0 {
			limit = 10
		}
		if limit > 250 {
			limit = 250
		}

		return db.Order("created_at ASC").Order("id ASC").Limit(limit + 1)
	}
}

// LockingUpdate is a gorm scope issuing SELECT ... FOR UPDATE.
func LockingUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func WithLockingUpdate() QueryOption {
	return LockingUpdate
}
