package cache

import (
	"strings"

	"gorm.io/gorm"
)

// Active keeps rows with is_active = true
func Active() Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("is_active = ?", true)
	}
}

// OrderBy sorts by the given SQL order expression
func OrderBy(expr string) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(expr)
	}
}

// Eq keeps rows whose column equals value
func Eq(column string, value interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" = ?", value)
	}
}

// Where adds an arbitrary condition
func Where(query string, args ...interface{}) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(query, args...)
	}
}

// Search keeps rows whose search_text contains query, ignoring case.
// An empty query matches everything. LIKE wildcards in query match literally.
func Search(query string) Scope {
	query = strings.ToLower(strings.TrimSpace(query))
	return func(db *gorm.DB) *gorm.DB {
		if query == "" {
			return db
		}
		return db.Where(`search_text LIKE ? ESCAPE '\'`, "%"+likeEscaper.Replace(query)+"%")
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
