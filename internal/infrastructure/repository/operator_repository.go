package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/custodia-platform/custodia-backend/internal/domain/errors"
	"github.com/custodia-platform/custodia-backend/internal/domain/operator"
	"github.com/custodia-platform/custodia-backend/internal/domain/values"
)

// operatorRepository implements operator.Repository using PostgreSQL.
// The security-state mutations (counters, OTP, sessions) run as
// row-locked transactions so concurrent logins never lose an update.
type operatorRepository struct {
	pool *pgxpool.Pool
}

// NewOperatorRepository creates a new operator repository.
func NewOperatorRepository(pool *pgxpool.Pool) operator.Repository {
	return &operatorRepository{pool: pool}
}

const operatorColumns = `
	id, username, email, phone, password_hash, role, status,
	kyc, grants, failed_logins, locked_until, otp, sessions,
	last_login_at, created_at, updated_at
`

func (r *operatorRepository) Create(ctx context.Context, op *operator.Operator) error {
	kycJSON, err := json.Marshal(op.KYC)
	if err != nil {
		return errors.NewStorageError("failed to marshal kyc record").WithCause(err)
	}
	grantsJSON, err := json.Marshal(op.Grants)
	if err != nil {
		return errors.NewStorageError("failed to marshal grants").WithCause(err)
	}
	sessionsJSON, err := json.Marshal(op.Sessions)
	if err != nil {
		return errors.NewStorageError("failed to marshal sessions").WithCause(err)
	}

	query := `
		INSERT INTO operators (
			id, username, email, phone, password_hash, role, status,
			kyc, grants, failed_logins, locked_until, otp, sessions,
			last_login_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err = r.pool.Exec(ctx, query,
		op.ID, op.Username, op.Email, op.Phone, op.PasswordHash,
		op.Role.String(), op.Status.String(),
		kycJSON, grantsJSON, op.FailedLogins, op.LockedUntil, nil, sessionsJSON,
		op.LastLoginAt, op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewConflictError("OPERATOR_EXISTS",
				"username, email or phone already registered").WithCause(err)
		}
		return errors.NewStorageError("failed to create operator").WithCause(err)
	}
	return nil
}

func (r *operatorRepository) GetByID(ctx context.Context, id uuid.UUID) (*operator.Operator, error) {
	query := fmt.Sprintf(`SELECT %s FROM operators WHERE id = $1`, operatorColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, id))
}

func (r *operatorRepository) GetByUsername(ctx context.Context, username string) (*operator.Operator, error) {
	query := fmt.Sprintf(`SELECT %s FROM operators WHERE username = $1`, operatorColumns)
	return r.scanOne(r.pool.QueryRow(ctx, query, username))
}

func (r *operatorRepository) ListByRole(ctx context.Context, role operator.Role) ([]*operator.Operator, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM operators
		WHERE role = $1 AND status = 'active'
		ORDER BY username
	`, operatorColumns)

	rows, err := r.pool.Query(ctx, query, role.String())
	if err != nil {
		return nil, errors.NewStorageError("failed to list operators").WithCause(err)
	}
	defer rows.Close()

	var ops []*operator.Operator
	for rows.Next() {
		op, err := r.scanOne(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStorageError("failed to iterate operators").WithCause(err)
	}
	return ops, nil
}

func (r *operatorRepository) scanOne(row pgx.Row) (*operator.Operator, error) {
	var op operator.Operator
	var roleStr, statusStr string
	var kycJSON, grantsJSON, sessionsJSON []byte
	var otpJSON []byte

	err := row.Scan(
		&op.ID, &op.Username, &op.Email, &op.Phone, &op.PasswordHash,
		&roleStr, &statusStr,
		&kycJSON, &grantsJSON, &op.FailedLogins, &op.LockedUntil, &otpJSON, &sessionsJSON,
		&op.LastLoginAt, &op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NewNotFoundError("operator")
		}
		return nil, errors.NewStorageError("failed to get operator").WithCause(err)
	}

	role, ok := operator.ParseRole(roleStr)
	if !ok {
		return nil, errors.NewStorageError("corrupt role value: " + roleStr)
	}
	op.Role = role

	status, ok := operator.ParseStatus(statusStr)
	if !ok {
		return nil, errors.NewStorageError("corrupt status value: " + statusStr)
	}
	op.Status = status

	if err := json.Unmarshal(kycJSON, &op.KYC); err != nil {
		return nil, errors.NewStorageError("failed to unmarshal kyc record").WithCause(err)
	}
	if err := json.Unmarshal(grantsJSON, &op.Grants); err != nil {
		return nil, errors.NewStorageError("failed to unmarshal grants").WithCause(err)
	}
	if err := json.Unmarshal(sessionsJSON, &op.Sessions); err != nil {
		return nil, errors.NewStorageError("failed to unmarshal sessions").WithCause(err)
	}
	if len(otpJSON) > 0 && string(otpJSON) != "null" {
		var otp storedOTP
		if err := json.Unmarshal(otpJSON, &otp); err != nil {
			return nil, errors.NewStorageError("failed to unmarshal otp record").WithCause(err)
		}
		op.OTP = otp.toDomain()
	}

	return &op, nil
}

func (r *operatorRepository) Update(ctx context.Context, op *operator.Operator) error {
	kycJSON, err := json.Marshal(op.KYC)
	if err != nil {
		return errors.NewStorageError("failed to marshal kyc record").WithCause(err)
	}
	grantsJSON, err := json.Marshal(op.Grants)
	if err != nil {
		return errors.NewStorageError("failed to marshal grants").WithCause(err)
	}
	sessionsJSON, err := json.Marshal(op.Sessions)
	if err != nil {
		return errors.NewStorageError("failed to marshal sessions").WithCause(err)
	}

	query := `
		UPDATE operators
		SET email = $2, phone = $3, password_hash = $4, status = $5,
		    kyc = $6, grants = $7, sessions = $8,
		    last_login_at = $9, updated_at = NOW()
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		op.ID, op.Email, op.Phone, op.PasswordHash, op.Status.String(),
		kycJSON, grantsJSON, sessionsJSON, op.LastLoginAt,
	)
	if err != nil {
		return errors.NewStorageError("failed to update operator").WithCause(err)
	}
	if tag.RowsAffected() == 0 {
		return errors.NewNotFoundError("operator")
	}
	return nil
}

// IncrementFailedLogins bumps the counter atomically and applies the
// lockout window at the threshold. Incrementing during an active
// lockout is a no-op so repeated submissions cannot extend the window.
func (r *operatorRepository) IncrementFailedLogins(ctx context.Context, id uuid.UUID, threshold int, lockout time.Duration) (int, *time.Time, error) {
	query := `
		UPDATE operators
		SET failed_logins = failed_logins + 1,
		    locked_until = CASE
		        WHEN failed_logins + 1 >= $2 THEN NOW() + $3::interval
		        ELSE locked_until
		    END,
		    updated_at = NOW()
		WHERE id = $1
		  AND (locked_until IS NULL OR locked_until <= NOW())
		RETURNING failed_logins, locked_until
	`

	var count int
	var lockedUntil *time.Time
	err := r.pool.QueryRow(ctx, query, id,
		threshold, fmt.Sprintf("%d seconds", int(lockout.Seconds())),
	).Scan(&count, &lockedUntil)
	if err != nil {
		if err == pgx.ErrNoRows {
			// Already locked; report the current state unchanged.
			row := r.pool.QueryRow(ctx,
				`SELECT failed_logins, locked_until FROM operators WHERE id = $1`, id)
			if scanErr := row.Scan(&count, &lockedUntil); scanErr != nil {
				return 0, nil, errors.NewStorageError("failed to read lockout state").WithCause(scanErr)
			}
			return count, lockedUntil, nil
		}
		return 0, nil, errors.NewStorageError("failed to increment failed logins").WithCause(err)
	}
	return count, lockedUntil, nil
}

func (r *operatorRepository) ResetFailedLogins(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE operators
		SET failed_logins = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return errors.NewStorageError("failed to reset failed logins").WithCause(err)
	}
	return nil
}

// storedOTP carries the code digits through JSON storage; the domain
// type deliberately excludes them from its JSON form.
type storedOTP struct {
	Code      string    `json:"code"`
	CaseID    uuid.UUID `json:"case_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Attempts  int       `json:"attempts"`
	SentAt    time.Time `json:"sent_at"`
}

func (s storedOTP) toDomain() *operator.OTPRecord {
	rec := &operator.OTPRecord{
		CaseID:    s.CaseID,
		ExpiresAt: s.ExpiresAt,
		Attempts:  s.Attempts,
		SentAt:    s.SentAt,
	}
	if code, err := values.NewOTPCode(s.Code); err == nil {
		rec.Code = code
	}
	return rec
}

func (r *operatorRepository) SetOTP(ctx context.Context, id uuid.UUID, otp *operator.OTPRecord) error {
	stored := storedOTP{
		Code:      otp.Code.String(),
		CaseID:    otp.CaseID,
		ExpiresAt: otp.ExpiresAt,
		Attempts:  otp.Attempts,
		SentAt:    otp.SentAt,
	}
	otpJSON, err := json.Marshal(stored)
	if err != nil {
		return errors.NewStorageError("failed to marshal otp record").WithCause(err)
	}

	_, err = r.pool.Exec(ctx, `
		UPDATE operators SET otp = $2, updated_at = NOW() WHERE id = $1
	`, id, otpJSON)
	if err != nil {
		return errors.NewStorageError("failed to store otp record").WithCause(err)
	}
	return nil
}

func (r *operatorRepository) IncrementOTPAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, `
		UPDATE operators
		SET otp = jsonb_set(otp, '{attempts}', (COALESCE((otp->>'attempts')::int, 0) + 1)::text::jsonb),
		    updated_at = NOW()
		WHERE id = $1 AND otp IS NOT NULL
		RETURNING (otp->>'attempts')::int
	`, id).Scan(&attempts)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, errors.NewNotFoundError("pending login")
		}
		return 0, errors.NewStorageError("failed to increment otp attempts").WithCause(err)
	}
	return attempts, nil
}

func (r *operatorRepository) ClearOTP(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE operators SET otp = NULL, updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		return errors.NewStorageError("failed to clear otp record").WithCause(err)
	}
	return nil
}

// AppendSession adds a session under a row lock so concurrent logins
// from multiple devices serialize their list mutations.
func (r *operatorRepository) AppendSession(ctx context.Context, id uuid.UUID, s operator.Session, cap int) error {
	return r.withLockedOperator(ctx, id, func(op *operator.Operator, tx pgx.Tx) error {
		op.Sessions = append(op.Sessions, s)
		if len(op.Sessions) > cap {
			op.Sessions = op.Sessions[len(op.Sessions)-cap:]
		}
		return r.writeSessions(ctx, tx, op)
	})
}

func (r *operatorRepository) RevokeSession(ctx context.Context, operatorID, sessionID uuid.UUID) error {
	return r.withLockedOperator(ctx, operatorID, func(op *operator.Operator, tx pgx.Tx) error {
		for i := range op.Sessions {
			if op.Sessions[i].ID == sessionID {
				op.Sessions[i].Active = false
			}
		}
		return r.writeSessions(ctx, tx, op)
	})
}

func (r *operatorRepository) GetSession(ctx context.Context, operatorID, sessionID uuid.UUID) (*operator.Session, error) {
	op, err := r.GetByID(ctx, operatorID)
	if err != nil {
		return nil, err
	}
	s, ok := op.SessionByID(sessionID)
	if !ok {
		return nil, errors.NewNotFoundError("session")
	}
	return s, nil
}

func (r *operatorRepository) AddGrant(ctx context.Context, id uuid.UUID, grant operator.CaseGrant) error {
	return r.withLockedOperator(ctx, id, func(op *operator.Operator, tx pgx.Tx) error {
		op.AddGrant(grant.CaseID, grant.Level)
		grantsJSON, err := json.Marshal(op.Grants)
		if err != nil {
			return errors.NewStorageError("failed to marshal grants").WithCause(err)
		}
		_, err = tx.Exec(ctx, `
			UPDATE operators SET grants = $2, updated_at = NOW() WHERE id = $1
		`, op.ID, grantsJSON)
		if err != nil {
			return errors.NewStorageError("failed to update grants").WithCause(err)
		}
		return nil
	})
}

func (r *operatorRepository) withLockedOperator(ctx context.Context, id uuid.UUID, fn func(*operator.Operator, pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM operators WHERE id = $1 FOR UPDATE`, operatorColumns)
		op, err := r.scanOne(tx.QueryRow(ctx, query, id))
		if err != nil {
			return err
		}
		return fn(op, tx)
	})
}

func (r *operatorRepository) writeSessions(ctx context.Context, tx pgx.Tx, op *operator.Operator) error {
	sessionsJSON, err := json.Marshal(op.Sessions)
	if err != nil {
		return errors.NewStorageError("failed to marshal sessions").WithCause(err)
	}
	_, err = tx.Exec(ctx, `
		UPDATE operators SET sessions = $2, updated_at = NOW() WHERE id = $1
	`, op.ID, sessionsJSON)
	if err != nil {
		return errors.NewStorageError("failed to update sessions").WithCause(err)
	}
	return nil
}
