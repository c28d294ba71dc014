package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/example/library-ledger/internal/events"
)

const minPasswordLength = 6

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (l *Ledger) memberByEmail(email string) (MemberRecord, bool) {
	for _, record := range l.members {
		if record.Email == email {
			return record, true
		}
	}
	return MemberRecord{}, false
}

func validateRegistration(params RegisterParams) *ValidationError {
	vErr := &ValidationError{}
	if params.Email == "" {
		vErr.add("email", "email is required")
	} else if _, err := mail.ParseAddress(params.Email); err != nil {
		vErr.add("email", "email must be a valid address")
	}
	if len(params.Password) < minPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	if params.Name == "" {
		vErr.add("name", "name is required")
	}
	return vErr
}

// Register creates a regular member account.
func (l *Ledger) Register(ctx context.Context, params RegisterParams) (Member, error) {
	return l.createMember(ctx, "Register", "register", params, RoleMember)
}

// CreateLibrarian creates a staff account.
func (l *Ledger) CreateLibrarian(ctx context.Context, principal Principal, params RegisterParams) (Member, error) {
	if err := authorizeLibrarian(principal); err != nil {
		l.observe("create_librarian", time.Now(), err)
		return Member{}, err
	}
	return l.createMember(ctx, "CreateLibrarian", "create_librarian", params, RoleLibrarian)
}

func (l *Ledger) createMember(ctx context.Context, operation, metric string, params RegisterParams, role Role) (member Member, err error) {
	params.Email = normalizeEmail(params.Email)
	params.Name = strings.TrimSpace(params.Name)
	logger := serviceLogger(ctx, l.logger, operation, "email", params.Email, "role", string(role))
	started := time.Now()
	defer func() {
		l.observe(metric, started, err)
		if err != nil {
			logger.ErrorContext(ctx, "create member failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "member created", "member_id", member.ID)
	}()

	if vErr := validateRegistration(params); vErr.HasErrors() {
		return Member{}, vErr
	}

	l.mu.Lock()
	_, exists := l.memberByEmail(params.Email)
	l.mu.Unlock()
	if exists {
		return Member{}, newError(ErrDuplicateEmail, "Email already registered")
	}

	hash, err := HashPassword(params.Password, l.passwordParams)
	if err != nil {
		return Member{}, fmt.Errorf("ledger: hash password: %w", err)
	}

	l.mu.Lock()
	member, err = l.insertMemberLocked(ctx, params, role, hash)
	l.mu.Unlock()
	if err != nil {
		return Member{}, err
	}

	l.publish(ctx, logger, events.TypeMemberRegistered, map[string]any{
		"member_id": member.ID,
		"email":     member.Email,
		"role":      string(member.Role),
	})
	return member, nil
}

func (l *Ledger) insertMemberLocked(ctx context.Context, params RegisterParams, role Role, hash string) (Member, error) {
	// Checked again: the email may have been taken while the hash was computed.
	if _, exists := l.memberByEmail(params.Email); exists {
		return Member{}, newError(ErrDuplicateEmail, "Email already registered")
	}

	prev := l.snapshotLocked()
	record := MemberRecord{
		Member: Member{
			ID:       nextMemberID(l.members),
			Email:    params.Email,
			Name:     params.Name,
			Role:     role,
			JoinDate: l.today(),
		},
		PasswordHash: hash,
	}
	l.members = append(l.members, record)
	if err := l.commit(ctx, prev); err != nil {
		return Member{}, err
	}
	return record.Member, nil
}

// Login verifies credentials and opens a session.
func (l *Ledger) Login(ctx context.Context, params LoginParams) (result LoginResult, err error) {
	email := normalizeEmail(params.Email)
	logger := serviceLogger(ctx, l.logger, "Login", "email", email)
	started := time.Now()
	defer func() {
		l.observe("login", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "login succeeded", "member_id", result.Member.ID)
	}()

	invalid := newError(ErrInvalidCredentials, "Invalid email or password")

	l.mu.Lock()
	record, ok := l.memberByEmail(email)
	l.mu.Unlock()
	if !ok {
		return LoginResult{}, invalid
	}
	if err := VerifyPassword(record.PasswordHash, params.Password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return LoginResult{}, invalid
		}
		return LoginResult{}, fmt.Errorf("ledger: verify password: %w", err)
	}

	now := l.now()
	if err := l.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		logger.WarnContext(ctx, "failed to prune expired sessions", "error", err)
	}

	session, err := l.sessions.CreateSession(ctx, Session{
		ID:        l.newToken(),
		Token:     l.newToken(),
		MemberID:  record.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(l.sessionTTL),
	})
	if err != nil {
		return LoginResult{}, fmt.Errorf("ledger: create session: %w", err)
	}

	return LoginResult{Member: record.Member, Session: session}, nil
}

// Logout ends the session identified by token.
func (l *Ledger) Logout(ctx context.Context, token string) (err error) {
	logger := serviceLogger(ctx, l.logger, "Logout")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "logout failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "logout succeeded")
	}()

	if strings.TrimSpace(token) == "" {
		return newError(ErrInvalidCredentials, "Session not found")
	}
	if err := l.sessions.DeleteSession(ctx, token); err != nil {
		if errors.Is(err, ErrNotFound) {
			return newError(ErrInvalidCredentials, "Session not found")
		}
		return fmt.Errorf("ledger: delete session: %w", err)
	}
	return nil
}

// Authenticate resolves a session token to the member it belongs to.
func (l *Ledger) Authenticate(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, newError(ErrUnauthorized, "Please login to continue")
	}

	session, err := l.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Identity{}, newError(ErrUnauthorized, "Please login to continue")
		}
		return Identity{}, fmt.Errorf("ledger: get session: %w", err)
	}

	if !l.now().Before(session.ExpiresAt) {
		if err := l.sessions.DeleteSession(ctx, token); err != nil && !errors.Is(err, ErrNotFound) {
			serviceLogger(ctx, l.logger, "Authenticate").WarnContext(ctx, "failed to delete expired session", "error", err)
		}
		return Identity{}, newError(ErrSessionExpired, "Session expired, please login again")
	}

	l.mu.Lock()
	member, ok := l.memberByID(session.MemberID)
	l.mu.Unlock()
	if !ok {
		return Identity{}, newError(ErrUnauthorized, "Please login to continue")
	}

	return Identity{
		Principal: Principal{MemberID: member.ID, Role: member.Role},
		Member:    member,
		Session:   session,
	}, nil
}

// Reset restores the seed dataset and signs everyone out.
func (l *Ledger) Reset(ctx context.Context, principal Principal) (err error) {
	logger := serviceLogger(ctx, l.logger, "Reset", "member_id", principal.MemberID)
	started := time.Now()
	defer func() {
		l.observe("reset", started, err)
		if err != nil {
			logger.ErrorContext(ctx, "reset failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "ledger reset to seed data")
	}()

	if err := authorizeLibrarian(principal); err != nil {
		return err
	}

	seed, err := seedSnapshot(l.passwordParams)
	if err != nil {
		return fmt.Errorf("ledger: build seed data: %w", err)
	}

	l.mu.Lock()
	prev := l.snapshotLocked()
	l.restoreLocked(seed)
	err = l.commit(ctx, prev)
	l.mu.Unlock()
	if err != nil {
		return err
	}

	if err := l.sessions.DeleteAllSessions(ctx); err != nil {
		return fmt.Errorf("ledger: delete sessions: %w", err)
	}

	l.publish(ctx, logger, events.TypeLedgerReset, map[string]any{"reset_by": principal.MemberID})
	return nil
}
