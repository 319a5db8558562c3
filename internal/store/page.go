package store

import (
	"context"
	"fmt"
	"strings"
)

// Page size bounds for TablePage.
const (
	DefaultPageSize = 50
	MaxPageSize     = 1000
)

// PageResult is one page of a table in storage order.
type PageResult struct {
	Table      string   `json:"table"`
	Columns    []string `json:"columns"`
	Rows       [][]any  `json:"rows"`
	TotalRows  int64    `json:"total_rows"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
	TotalPages int      `json:"total_pages"`
}

// TablePage fetches one page of table. Out-of-range pages are clamped.
func TablePage(ctx context.Context, db DB, table string, page, pageSize int) (*PageResult, error) {
	cols, err := db.Describe(ctx, table)
	if err != nil {
		return nil, err
	}

	totalRows, err := db.Count(ctx, table)
	if err != nil {
		return nil, err
	}

	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	totalPages := int((totalRows + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	offset := (page - 1) * pageSize

	quoted := make([]string, len(cols))
	names := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c.Name)
		names[i] = c.Name
	}

	query := fmt.Sprintf("SELECT %s FROM %s LIMIT %d OFFSET %d",
		strings.Join(quoted, ", "), QuoteIdent(table), pageSize, offset)
	res, err := db.Exec(ctx, query)
	if err != nil {
		return nil, err
	}

	rows := res.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return &PageResult{
		Table:      table,
		Columns:    names,
		Rows:       rows,
		TotalRows:  totalRows,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}, nil
}
