package services

import (
	"net/url"
	"strconv"
	"strings"
)

// sortColumns maps the public sort fields onto task columns. Anything not
// listed here never reaches the SQL text.
var sortColumns = map[string]string{
	"createdAt":   "created_at",
	"updatedAt":   "updated_at",
	"description": "description",
	"completed":   "completed",
}

// TaskQuery holds the list options of GET /tasks/me.
type TaskQuery struct {
	Completed  *bool
	Limit      int // 0 means unbounded
	Skip       int
	SortColumn string // empty means insertion order
	Descending bool
}

// ParseTaskQuery reads completed, limit, skip and sortBy. Values it cannot
// use are ignored rather than rejected.
func ParseTaskQuery(values url.Values) TaskQuery {
	var q TaskQuery

	switch values.Get("completed") {
	case "true":
		v := true
		q.Completed = &v
	case "false":
		v := false
		q.Completed = &v
	}

	if n, err := strconv.Atoi(values.Get("limit")); err == nil && n > 0 {
		q.Limit = n
	}
	if n, err := strconv.Atoi(values.Get("skip")); err == nil && n > 0 {
		q.Skip = n
	}

	if sortBy := values.Get("sortBy"); sortBy != "" {
		field, direction, _ := strings.Cut(sortBy, ":")
		if column, ok := sortColumns[field]; ok {
			q.SortColumn = column
			switch strings.ToLower(direction) {
			case "desc", "descending", "-1":
				q.Descending = true
			}
		}
	}
	return q
}

// SQL renders the query for one owner. The owner predicate always comes
// first and every user supplied value is a bound parameter.
func (q TaskQuery) SQL(ownerID string) (string, []any) {
	var b strings.Builder
	args := []any{ownerID}

	b.WriteString("SELECT " + taskColumns + " FROM tasks WHERE owner_id = ?")
	if q.Completed != nil {
		b.WriteString(" AND completed = ?")
		args = append(args, *q.Completed)
	}

	b.WriteString(" ORDER BY ")
	if q.SortColumn != "" {
		b.WriteString(q.SortColumn)
		if q.Descending {
			b.WriteString(" DESC, ")
		} else {
			b.WriteString(" ASC, ")
		}
	}
	b.WriteString("seq ASC")

	// SQLite wants a LIMIT before OFFSET; -1 means no limit.
	limit := -1
	if q.Limit > 0 {
		limit = q.Limit
	}
	b.WriteString(" LIMIT ? OFFSET ?")
	args = append(args, limit, q.Skip)

	return b.String(), args
}
