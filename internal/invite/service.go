// Package invite links dependent accounts into a guardian's family through
// short-lived single-use codes.
package invite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/sproutfam/sprout/internal/model"
	"github.com/sproutfam/sprout/internal/store"
)

var (
	ErrInvalidCode  = errors.New("invite code has an invalid format")
	ErrCodeNotFound = errors.New("invite code not found or expired")
	ErrCodeConsumed = errors.New("invite code already consumed")
	ErrUserNotFound = errors.New("user not found")
)

const (
	// DefaultTTL is how long an issued code stays redeemable.
	DefaultTTL = 24 * time.Hour

	maxIssueRetries = 5
)

type Service struct {
	db       *sql.DB
	codes    *store.InviteCodeStore
	users    *store.UserStore
	families *store.FamilyStore
	logger   *slog.Logger
}

func NewService(db *sql.DB, codes *store.InviteCodeStore, users *store.UserStore, families *store.FamilyStore, logger *slog.Logger) *Service {
	return &Service{db: db, codes: codes, users: users, families: families, logger: logger}
}

// Issue creates a fresh code for the guardian, expiring after ttl. Generation
// retries a bounded number of times if the candidate collides with a live
// code or the unique index.
func (s *Service) Issue(ctx context.Context, issuerID int64, ttl time.Duration) (*model.InviteCode, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	issuer, err := s.users.GetByID(issuerID)
	if err != nil {
		return nil, err
	}
	if issuer == nil {
		return nil, ErrUserNotFound
	}

	expiresAt := time.Now().UTC().Add(ttl)

	var created *model.InviteCode
	backoff := retry.WithMaxRetries(maxIssueRetries, retry.NewConstant(time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		code, err := generateCode()
		if err != nil {
			return err
		}

		exists, err := s.codes.ExistsLive(code)
		if err != nil {
			return err
		}
		if exists {
			return retry.RetryableError(fmt.Errorf("code %s collides with a live code", code))
		}

		created, err = s.codes.Create(code, issuerID, expiresAt)
		if err != nil {
			// An expired row can still hold the code value; pick another.
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("issue invite code: %w", err)
	}

	s.logger.Info("invite code issued", "issuer_id", issuerID, "code", created.Code, "expires_at", created.ExpiresAt)
	return created, nil
}

// Verify checks a code without consuming it and returns the code together
// with its issuer. This is the read-only half of the linking flow; the
// authoritative consume happens in Link.
func (s *Service) Verify(code string) (*model.InviteCode, *model.User, error) {
	code = Normalize(code)
	if !ValidFormat(code) {
		return nil, nil, ErrInvalidCode
	}

	live, err := s.codes.GetLive(code)
	if err != nil {
		return nil, nil, err
	}
	if live == nil {
		return nil, nil, ErrCodeNotFound
	}

	issuer, err := s.users.GetByID(live.IssuerID)
	if err != nil {
		return nil, nil, err
	}
	if issuer == nil {
		return nil, nil, ErrCodeNotFound
	}
	return live, issuer, nil
}

// Link consumes the code and joins the dependent to the issuer's family in a
// single transaction. The conditional consume is the concurrency guard: of
// two racing calls on the same code, exactly one sees an affected row and
// wins; the other gets ErrCodeConsumed.
func (s *Service) Link(ctx context.Context, code string, dependentID int64) (int64, error) {
	code = Normalize(code)
	if !ValidFormat(code) {
		return 0, ErrInvalidCode
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin link tx: %w", err)
	}
	defer tx.Rollback()

	affected, err := s.codes.ConsumeTx(tx, code, dependentID)
	if err != nil {
		return 0, err
	}
	if affected == 0 {
		// Distinguish a consumed code from an unknown or expired one.
		existing, err := s.codes.GetByCodeTx(tx, code)
		if err != nil {
			return 0, err
		}
		if existing != nil && existing.Consumed() {
			return 0, ErrCodeConsumed
		}
		return 0, ErrCodeNotFound
	}

	consumed, err := s.codes.GetByCodeTx(tx, code)
	if err != nil {
		return 0, err
	}

	issuer, err := s.users.GetByIDTx(tx, consumed.IssuerID)
	if err != nil {
		return 0, err
	}
	if issuer == nil {
		return 0, ErrUserNotFound
	}

	dependent, err := s.users.GetByIDTx(tx, dependentID)
	if err != nil {
		return 0, err
	}
	if dependent == nil {
		return 0, ErrUserNotFound
	}

	familyID, err := s.ensureFamilyTx(tx, issuer)
	if err != nil {
		return 0, err
	}

	if err := s.users.SetFamilyTx(tx, dependentID, familyID); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit link tx: %w", err)
	}

	s.logger.Info("dependent linked", "code", code, "dependent_id", dependentID, "family_id", familyID)
	return familyID, nil
}

// ensureFamilyTx resolves the issuer's family, creating one on first link.
func (s *Service) ensureFamilyTx(tx *sql.Tx, issuer *model.User) (int64, error) {
	if issuer.FamilyID != nil {
		return *issuer.FamilyID, nil
	}

	familyID, err := s.families.CreateTx(tx, issuer.Name+"'s family")
	if err != nil {
		return 0, err
	}
	if err := s.users.SetFamilyTx(tx, issuer.ID, familyID); err != nil {
		return 0, err
	}
	return familyID, nil
}
