package repo

import (
	"github.com/jackc/pgx/v5/pgtype"
)

// nullText maps "" to SQL NULL.
func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func textValue(t pgtype.Text) string {
	if t.Valid {
		return t.String
	}
	return ""
}
