// Package repository is the gorm persistence layer for stores, receipts,
// customers, visits, rewards and the settings row.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrDuplicateInvoice = errors.New("invoice number already recorded")
	ErrDuplicateBarcode = errors.New("barcode already recorded")
	ErrConflict         = errors.New("unique constraint violation")
)

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the handle for callers that need ad-hoc queries (reports, CLIs).
func (r *Repository) DB() *gorm.DB { return r.db }

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// isUniqueConstraintError recognises unique violations from postgres (SQLSTATE
// 23505) and, by message, from sqlite.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "duplicate key") || strings.Contains(s, "unique constraint") || strings.Contains(s, "already exists")
}

// classifyConflict maps an insert error to the duplicate sentinel matching the
// violated index. Non-unique errors pass through unchanged.
func classifyConflict(err error) error {
	if !isUniqueConstraintError(err) {
		return err
	}
	detail := err.Error()
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		detail = pgErr.ConstraintName + " " + detail
	}
	detail = strings.ToLower(detail)
	switch {
	case strings.Contains(detail, "barcode"):
		return fmt.Errorf("%w: %v", ErrDuplicateBarcode, err)
	case strings.Contains(detail, "invoice"):
		return fmt.Errorf("%w: %v", ErrDuplicateInvoice, err)
	}
	return fmt.Errorf("%w: %v", ErrConflict, err)
}
