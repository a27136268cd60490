package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/eshaffer321/utility-ledger/internal/domain/ledger"
)

const payeeColumns = `id, name, is_default, responsibility_percent, created_at`

// CreatePayee adds a payee. When isDefault is set, any previous default is cleared.
func (s *Storage) CreatePayee(ctx context.Context, name string, isDefault bool) (*ledger.PayeeUser, error) {
	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if isDefault {
			if _, err := tx.ExecContext(ctx, `UPDATE payee_users SET is_default = 0`); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO payee_users (name, is_default, responsibility_percent, created_at) VALUES (?, ?, 0, ?)`,
			strings.TrimSpace(name), isDefault, time.Now().UTC())
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("payee %q: %w", name, ErrConflict)
			}
			return fmt.Errorf("insert payee: %w", err)
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetPayee(ctx, id)
}

// GetPayee retrieves a payee with its cards
func (s *Storage) GetPayee(ctx context.Context, id int64) (*ledger.PayeeUser, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+payeeColumns+` FROM payee_users WHERE id = ?`, id)
	return s.loadPayee(ctx, row, fmt.Sprintf("payee %d", id))
}

// GetDefaultPayee returns the default payee
func (s *Storage) GetDefaultPayee(ctx context.Context) (*ledger.PayeeUser, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+payeeColumns+` FROM payee_users WHERE is_default = 1 ORDER BY id LIMIT 1`)
	return s.loadPayee(ctx, row, "default payee")
}

// GetPayeeByCard returns the owner of a card
func (s *Storage) GetPayeeByCard(ctx context.Context, lastFour string) (*ledger.PayeeUser, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT p.id, p.name, p.is_default, p.responsibility_percent, p.created_at
		FROM payee_users p JOIN user_cards c ON c.payee_id = p.id
		WHERE c.last_four = ?`, lastFour)
	return s.loadPayee(ctx, row, "card "+lastFour)
}

func (s *Storage) loadPayee(ctx context.Context, row *sql.Row, what string) (*ledger.PayeeUser, error) {
	payee, err := scanPayee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	cards, err := listCards(ctx, s.db, &payee.ID)
	if err != nil {
		return nil, err
	}
	payee.Cards = cards
	return payee, nil
}

// ListPayees returns all payees with their cards
func (s *Storage) ListPayees(ctx context.Context) ([]*ledger.PayeeUser, error) {
	return listPayees(ctx, s.db)
}

func listPayees(ctx context.Context, q querier) ([]*ledger.PayeeUser, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+payeeColumns+` FROM payee_users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list payees: %w", err)
	}
	defer func() { _ = rows.Close() }()

	payees := make([]*ledger.PayeeUser, 0)
	byID := make(map[int64]*ledger.PayeeUser)
	for rows.Next() {
		p, err := scanPayee(rows)
		if err != nil {
			return nil, err
		}
		p.Cards = []ledger.UserCard{}
		payees = append(payees, p)
		byID[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cards, err := listCards(ctx, q, nil)
	if err != nil {
		return nil, err
	}
	for _, c := range cards {
		if p, ok := byID[c.PayeeID]; ok {
			p.Cards = append(p.Cards, c)
		}
	}
	return payees, nil
}

// SetDefaultPayee makes id the only default payee
func (s *Storage) SetDefaultPayee(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE payee_users SET is_default = 0 WHERE id != ?`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `UPDATE payee_users SET is_default = 1 WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return requireAffected(res, "payee", id)
	})
}

// SetResponsibilities writes every percentage in one transaction
func (s *Storage) SetResponsibilities(ctx context.Context, percents map[int64]float64) error {
	ids := make([]int64, 0, len(percents))
	for id := range percents {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			res, err := tx.ExecContext(ctx,
				`UPDATE payee_users SET responsibility_percent = ? WHERE id = ?`, percents[id], id)
			if err != nil {
				return fmt.Errorf("update payee %d: %w", id, err)
			}
			if err := requireAffected(res, "payee", id); err != nil {
				return err
			}
		}
		return nil
	})
}

// AddCard registers a card for a payee
func (s *Storage) AddCard(ctx context.Context, payeeID int64, lastFour, label string) (*ledger.UserCard, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_cards (payee_id, last_four, label, added_at) VALUES (?, ?, ?, ?)`,
		payeeID, lastFour, label, now)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return nil, fmt.Errorf("card %s: %w", lastFour, ErrConflict)
		case isForeignKeyViolation(err):
			return nil, fmt.Errorf("payee %d: %w", payeeID, ErrNotFound)
		}
		return nil, fmt.Errorf("insert card: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &ledger.UserCard{ID: id, PayeeID: payeeID, LastFour: lastFour, Label: label, AddedAt: now}, nil
}

// RemoveCard unregisters a card
func (s *Storage) RemoveCard(ctx context.Context, lastFour string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM user_cards WHERE last_four = ?`, lastFour)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	return requireAffected(res, "card", lastFour)
}

func listCards(ctx context.Context, q querier, payeeID *int64) ([]ledger.UserCard, error) {
	query := `SELECT id, payee_id, last_four, label, added_at FROM user_cards`
	var args []any
	if payeeID != nil {
		query += ` WHERE payee_id = ?`
		args = append(args, *payeeID)
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cards := make([]ledger.UserCard, 0)
	for rows.Next() {
		var c ledger.UserCard
		if err := rows.Scan(&c.ID, &c.PayeeID, &c.LastFour, &c.Label, &c.AddedAt); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

func scanPayee(row scanner) (*ledger.PayeeUser, error) {
	var p ledger.PayeeUser
	if err := row.Scan(&p.ID, &p.Name, &p.IsDefault, &p.ResponsibilityPercent, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
