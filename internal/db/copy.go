// Package db provides shared Postgres helpers.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyRecords bulk-inserts string-map records into table over columns with
// the COPY protocol. Fields a record lacks are sent as NULL. The copy is
// atomic: either every record lands or none do.
func CopyRecords(ctx context.Context, pool Pool, table string, columns []string, records []map[string]string) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	src := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		return recordRow(columns, records[i]), nil
	})
	n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, src)
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}
	return n, nil
}

func recordRow(columns []string, rec map[string]string) []any {
	row := make([]any, len(columns))
	for j, c := range columns {
		if v, ok := rec[c]; ok {
			row[j] = v
		}
	}
	return row
}
