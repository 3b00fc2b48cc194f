package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/enums"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/model"
	"github.com/praveenkaruppusamy2005/inter-backend/internal/domain/rules"
)

var ErrUserNotFound = errors.New("user not found")

const defaultFreeCredits = 1

type UserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *UserRepo {
	return &UserRepo{pool: pool}
}

const userColumns = `
	email,
	name,
	plan,
	pro_expires_at,
	free_credits,
	credits_used,
	paid_chat_credits,
	chat_credits_used,
	paid_interview_credits,
	interview_credits_used,
	resume_path,
	last_credit_used_at,
	created_at,
	updated_at`

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return model.User{}, fmt.Errorf("email is required")
	}
	if r.pool == nil {
		return model.User{}, fmt.Errorf("postgres pool is nil")
	}

	user, err := scanUserRow(r.pool.QueryRow(ctx, `
SELECT`+userColumns+`
FROM users
WHERE email = $1
LIMIT 1
`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("find user by email: %w", err)
	}

	return user, nil
}

// EnsureUser creates the row with the default free-trial pool if the email is
// new; existing rows are left untouched.
func (r *UserRepo) EnsureUser(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO users (email, plan, free_credits, created_at, updated_at)
VALUES ($1, 'free', $2, NOW(), NOW())
ON CONFLICT (email) DO NOTHING
`, email, defaultFreeCredits); err != nil {
		return fmt.Errorf("ensure user row: %w", err)
	}

	return nil
}

// DebitOne increments the used counter of one debit source by exactly one,
// guarded by the bucket headroom inside the same statement. Returns false when
// the source has no headroom left; concurrent callers race on the row update,
// not on a read-modify-write.
func (r *UserRepo) DebitOne(ctx context.Context, email string, src rules.DebitSource) (bool, error) {
	email = normalizeEmail(email)
	if email == "" {
		return false, fmt.Errorf("email is required")
	}
	if r.pool == nil {
		return false, fmt.Errorf("postgres pool is nil")
	}
	if !validColumn(src.UsedColumn) || !validColumn(src.CapColumn) {
		return false, fmt.Errorf("invalid debit source columns: %q/%q", src.UsedColumn, src.CapColumn)
	}

	// Column names come from the fixed rules.DebitPlan table, never from input.
	query := fmt.Sprintf(`
UPDATE users
SET
	%[1]s = %[1]s + 1,
	last_credit_used_at = NOW(),
	updated_at = NOW()
WHERE
	email = $1
	AND %[2]s - %[1]s >= 1
`, src.UsedColumn, src.CapColumn)

	result, err := r.pool.Exec(ctx, query, email)
	if err != nil {
		return false, fmt.Errorf("debit %s bucket: %w", src.Bucket, err)
	}

	return result.RowsAffected() > 0, nil
}

// ApplyGrant applies a confirmed payment's entitlement mutation and appends
// the audit transaction in one database transaction. Callers guarantee the
// grant is applied at most once per order (the intent state machine), so the
// credit addition itself does not need to be idempotent.
func (r *UserRepo) ApplyGrant(ctx context.Context, email string, grant model.Grant, txRecord model.Transaction, now time.Time) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	return withTx(ctx, r.pool, func(txCtx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(txCtx, `
INSERT INTO users (email, plan, free_credits, created_at, updated_at)
VALUES ($1, 'free', $2, NOW(), NOW())
ON CONFLICT (email) DO NOTHING
`, email, defaultFreeCredits); err != nil {
			return fmt.Errorf("ensure user row: %w", err)
		}

		if grant.ChatCredits > 0 || grant.InterviewCredits > 0 {
			if _, err := tx.Exec(txCtx, `
UPDATE users
SET
	paid_chat_credits = paid_chat_credits + $2,
	paid_interview_credits = paid_interview_credits + $3,
	updated_at = NOW()
WHERE email = $1
`, email, grant.ChatCredits, grant.InterviewCredits); err != nil {
				return fmt.Errorf("grant paid credits: %w", err)
			}
		}

		if grant.ProDuration > 0 {
			if _, err := tx.Exec(txCtx, `
UPDATE users
SET
	plan = 'pro',
	pro_expires_at = $2::timestamptz,
	updated_at = NOW()
WHERE email = $1
`, email, now.UTC().Add(grant.ProDuration)); err != nil {
				return fmt.Errorf("grant pro plan: %w", err)
			}
		}

		if _, err := tx.Exec(txCtx, `
INSERT INTO transactions (
	transaction_id,
	email,
	amount_inr,
	status,
	payment_method,
	plan_type,
	created_at,
	completed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (transaction_id) DO NOTHING
`,
			txRecord.TransactionID,
			email,
			txRecord.AmountINR,
			txRecord.Status,
			txRecord.PaymentMethod,
			string(txRecord.PlanType),
			txRecord.CreatedAt,
			txRecord.CompletedAt,
		); err != nil {
			return fmt.Errorf("append transaction record: %w", err)
		}

		return nil
	})
}

func (r *UserRepo) ListTransactions(ctx context.Context, email string) ([]model.Transaction, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, fmt.Errorf("email is required")
	}
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	transaction_id,
	email,
	amount_inr,
	status,
	payment_method,
	plan_type,
	created_at,
	completed_at
FROM transactions
WHERE email = $1
ORDER BY created_at
`, email)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		var rec model.Transaction
		var planType string
		if err := rows.Scan(
			&rec.TransactionID,
			&rec.Email,
			&rec.AmountINR,
			&rec.Status,
			&rec.PaymentMethod,
			&planType,
			&rec.CreatedAt,
			&rec.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		rec.PlanType = planTypeFromString(planType)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}

// ResetFreeCredits restores the trial pool; testing/admin affordance.
func (r *UserRepo) ResetFreeCredits(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	result, err := r.pool.Exec(ctx, `
UPDATE users
SET
	free_credits = $2,
	credits_used = 0,
	last_credit_used_at = NULL,
	updated_at = NOW()
WHERE email = $1
`, email, defaultFreeCredits)
	if err != nil {
		return fmt.Errorf("reset free credits: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func (r *UserRepo) SetResumePath(ctx context.Context, email, path string) error {
	email = normalizeEmail(email)
	if email == "" || strings.TrimSpace(path) == "" {
		return fmt.Errorf("email and resume path are required")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	result, err := r.pool.Exec(ctx, `
UPDATE users
SET resume_path = $2, updated_at = NOW()
WHERE email = $1
`, email, path)
	if err != nil {
		return fmt.Errorf("set resume path: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}

	return nil
}

func withTx(ctx context.Context, pool *pgxpool.Pool, fn func(context.Context, pgx.Tx) error) error {
	if pool == nil {
		return errors.New("postgres pool is nil")
	}

	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func scanUserRow(row pgx.Row) (model.User, error) {
	var u model.User
	var name *string
	if err := row.Scan(
		&u.Email,
		&name,
		&u.Plan,
		&u.ProExpiresAt,
		&u.FreeCredits,
		&u.CreditsUsed,
		&u.PaidChatCredits,
		&u.ChatCreditsUsed,
		&u.PaidInterviewCredits,
		&u.InterviewCreditsUsed,
		&u.ResumePath,
		&u.LastCreditUsedAt,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return model.User{}, err
	}
	if name != nil {
		u.Name = *name
	}
	return u, nil
}

func normalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func validColumn(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r != '_' && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

func planTypeFromString(raw string) enums.PlanType {
	if pt, ok := enums.ParsePlanType(raw); ok {
		return pt
	}
	return enums.PlanType(raw)
}
