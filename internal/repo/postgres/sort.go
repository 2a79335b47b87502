package postgres

import "strings"

// orderClause maps an API sort key ("-createdAt" style, leading dash for
// descending) to a SQL ORDER BY expression. Unknown keys fall back to the
// default so callers can never inject arbitrary SQL.
func orderClause(sort string, columns map[string]string, idCol, fallback string) string {
	dir := " ASC"

	if strings.HasPrefix(sort, "-") {
		dir = " DESC"
		sort = strings.TrimPrefix(sort, "-")
	}

	col, ok := columns[sort]

	if !ok {
		return fallback
	}

	// id as tiebreaker keeps pagination stable
	return col + dir + ", " + idCol + dir
}

var userSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
	"email":     "email",
}

var contentSortColumns = map[string]string{
	"createdAt":   "c.created_at",
	"updatedAt":   "c.updated_at",
	"publishedAt": "c.published_at",
	"title":       "c.title",
}
