package model

// Catalog lists every table owned by shelfd, in migration order.
func Catalog() []any {
	return []any{
		&Series{},
		&SeriesTag{},
		&Chapter{},
	}
}
