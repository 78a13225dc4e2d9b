package document_repo

import (
	"strings"

	"stockbook/internal/core/apperror"
)

// parseDocOrderBy validates an orderBy expression against the table
// columns. "-field" sorts DESC.
func parseDocOrderBy(orderBy string, cols []string) (string, error) {
	allowed := make(map[string]struct{}, len(cols))
	for _, col := range cols {
		allowed[col] = struct{}{}
	}

	if orderBy == "" {
		return "created_at DESC", nil
	}

	direction := "ASC"
	field := orderBy
	if strings.HasPrefix(orderBy, "-") {
		direction = "DESC"
		field = strings.TrimPrefix(orderBy, "-")
	} else if strings.HasPrefix(orderBy, "+") {
		field = strings.TrimPrefix(orderBy, "+")
	}

	field = strings.TrimSpace(field)
	if _, ok := allowed[field]; !ok {
		return "", apperror.NewValidation("invalid orderBy").
			WithDetail("orderBy", orderBy).
			WithDetail("field", field)
	}

	return field + " " + direction, nil
}
