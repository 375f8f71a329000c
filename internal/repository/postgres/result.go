package postgres

import (
	"database/sql"
	"fmt"

	"github.com/jwalitptl/salon-api/internal/repository"
)

func requireRow(result sql.Result, entity string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", entity, repository.ErrNotFound)
	}
	return nil
}
