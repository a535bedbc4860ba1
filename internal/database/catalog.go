package database

import (
	"context"
	"database/sql"
	"fmt"

	"rebate-ledger-go/internal/models"

	"go.uber.org/zap"
)

// SeedCatalog inserts any account types and symbol groups not yet present.
func (s *Service) SeedCatalog(ctx context.Context, accountTypes, symbolGroups []string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, name := range accountTypes {
			if _, err := tx.ExecContext(ctx, queryInsertAccountType, name); err != nil {
				return fmt.Errorf("unable to insert account type %s: %w", name, err)
			}
		}
		for _, name := range symbolGroups {
			if _, err := tx.ExecContext(ctx, queryInsertSymbolGroup, name); err != nil {
				return fmt.Errorf("unable to insert symbol group %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Catalog seeded",
		zap.Int("account_types", len(accountTypes)),
		zap.Int("symbol_groups", len(symbolGroups)))
	return nil
}

func (s *Service) ListAccountTypes(ctx context.Context) ([]models.AccountType, error) {
	rows, err := s.db.QueryContext(ctx, queryListAccountTypes)
	if err != nil {
		return nil, fmt.Errorf("unable to query account types: %w", err)
	}
	defer closeRows(rows)

	var out []models.AccountType
	for rows.Next() {
		var at models.AccountType
		if err := rows.Scan(&at.Id, &at.Name); err != nil {
			return nil, fmt.Errorf("unable to scan account type: %w", err)
		}
		out = append(out, at)
	}
	return out, rows.Err()
}

func (s *Service) ListSymbolGroups(ctx context.Context) ([]models.SymbolGroup, error) {
	rows, err := s.db.QueryContext(ctx, queryListSymbolGroups)
	if err != nil {
		return nil, fmt.Errorf("unable to query symbol groups: %w", err)
	}
	defer closeRows(rows)

	var out []models.SymbolGroup
	for rows.Next() {
		var sg models.SymbolGroup
		if err := rows.Scan(&sg.Id, &sg.Name); err != nil {
			return nil, fmt.Errorf("unable to scan symbol group: %w", err)
		}
		out = append(out, sg)
	}
	return out, rows.Err()
}
