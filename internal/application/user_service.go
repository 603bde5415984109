package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/billboard-server/internal/policy"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
	UpdatePermissions(ctx context.Context, id int64, permissions policy.Permissions) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	// DeleteUser removes the user together with everything they own.
	DeleteUser(ctx context.Context, id int64) error
}

// UserService orchestrates validation, authorization and persistence for users.
type UserService struct {
	users  UserRepository
	hash   PasswordHasher
	logger *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, hash PasswordHasher, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = NewPasswordHasher(DefaultArgon2idParams)
	}
	return &UserService{users: users, hash: hash, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

func (s *UserService) ready() error {
	if s == nil || s.users == nil {
		return fmt.Errorf("user repository not configured")
	}
	return nil
}

// SeedInitialAdmin creates an account with every permission when no users exist.
// It reports whether an account was created.
func (s *UserService) SeedInitialAdmin(ctx context.Context, username, password string) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	count, err := s.users.CountUsers(ctx)
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	username = strings.TrimSpace(username)
	if vErr := validateCredentials(username, password); vErr.HasErrors() {
		return false, vErr
	}

	hash, err := s.hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.users.CreateUser(ctx, User{Username: username, Permissions: policy.All()}, hash)
	if err != nil {
		return false, err
	}

	s.loggerWith(ctx, "SeedInitialAdmin").WarnContext(ctx, "seeded initial administrator; change its password",
		"user_id", user.ID, "username", user.Username)
	return true, nil
}

// ListUsers returns every user ordered by username.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if decision := policy.Evaluate(policy.GetUsernames, principal.caller(), policy.Target{}); !decision.Allowed {
		return nil, forbidden(decision)
	}
	return s.users.ListUsers(ctx)
}

// GetUser returns a user's public data. Password hashes never leave the store adapter.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID int64) (User, error) {
	if err := s.ready(); err != nil {
		return User{}, err
	}
	if decision := policy.Evaluate(policy.GetUserData, principal.caller(), policy.Target{UserID: userID}); !decision.Allowed {
		return User{}, forbidden(decision)
	}
	return s.getUser(ctx, userID)
}

// GetUserID looks a user up by username.
func (s *UserService) GetUserID(ctx context.Context, principal Principal, username string) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if decision := policy.Evaluate(policy.GetUserID, principal.caller(), policy.Target{}); !decision.Allowed {
		return 0, forbidden(decision)
	}

	username = strings.TrimSpace(username)
	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("%w: user %q", ErrNotFound, username)
		}
		return 0, err
	}
	return user.ID, nil
}

// AddUser creates a user with the given permissions.
func (s *UserService) AddUser(ctx context.Context, params AddUserParams) (user User, err error) {
	if err = s.ready(); err != nil {
		return
	}

	username := strings.TrimSpace(params.Username)
	logger := s.loggerWith(ctx, "AddUser", "principal_id", params.Principal.UserID, "username", username)
	defer func() {
		logOutcome(ctx, logger, err, "user created", "user_id", user.ID)
	}()

	if decision := policy.Evaluate(policy.AddUser, params.Principal.caller(), policy.Target{}); !decision.Allowed {
		err = forbidden(decision)
		return
	}
	if vErr := validateCredentials(username, params.Password); vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = s.hash(params.Password)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	user, err = s.users.CreateUser(ctx, User{Username: username, Permissions: params.Permissions}, hash)
	if err != nil && errors.Is(err, ErrConflict) {
		err = fmt.Errorf("%w: username %q already in use", ErrConflict, username)
	}
	return
}

// DeleteUser removes another user together with their sessions, billboards and schedules.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID int64) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "DeleteUser", "principal_id", principal.UserID, "user_id", userID)
	defer func() {
		logOutcome(ctx, logger, err, "user deleted")
	}()

	if decision := policy.Evaluate(policy.DeleteUser, principal.caller(), policy.Target{UserID: userID}); !decision.Allowed {
		err = forbidden(decision)
		return
	}
	if err = s.users.DeleteUser(ctx, userID); err != nil && errors.Is(err, ErrNotFound) {
		err = fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	return
}

// GetOwnPermissions returns the principal's flags as currently stored.
func (s *UserService) GetOwnPermissions(ctx context.Context, principal Principal) (policy.Permissions, error) {
	if err := s.ready(); err != nil {
		return policy.Permissions{}, err
	}
	user, err := s.getUser(ctx, principal.UserID)
	if err != nil {
		return policy.Permissions{}, err
	}
	return user.Permissions, nil
}

// GetPermissions returns the flags of userID.
func (s *UserService) GetPermissions(ctx context.Context, principal Principal, userID int64) (policy.Permissions, error) {
	if err := s.ready(); err != nil {
		return policy.Permissions{}, err
	}
	if decision := policy.Evaluate(policy.GetPermissions, principal.caller(), policy.Target{UserID: userID}); !decision.Allowed {
		return policy.Permissions{}, forbidden(decision)
	}
	user, err := s.getUser(ctx, userID)
	if err != nil {
		return policy.Permissions{}, err
	}
	return user.Permissions, nil
}

// UpdatePermissions replaces the flags of a user and returns what was stored.
// A user can never clear their own editUsers flag; the request is applied with it kept.
func (s *UserService) UpdatePermissions(ctx context.Context, params UpdatePermissionsParams) (applied policy.Permissions, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdatePermissions", "principal_id", params.Principal.UserID, "user_id", params.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "permissions updated",
			"create_billboards", applied.CreateBillboards,
			"edit_billboards", applied.EditBillboards,
			"schedule_billboards", applied.ScheduleBillboards,
			"edit_users", applied.EditUsers,
		)
	}()

	if decision := policy.Evaluate(policy.UpdateUserPermissions, params.Principal.caller(), policy.Target{UserID: params.UserID}); !decision.Allowed {
		err = forbidden(decision)
		return
	}

	permissions := params.Permissions
	if params.UserID == params.Principal.UserID && !permissions.EditUsers {
		logger.InfoContext(ctx, "kept editUsers on own account")
		permissions.EditUsers = true
	}

	if err = s.users.UpdatePermissions(ctx, params.UserID, permissions); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("%w: user %d", ErrNotFound, params.UserID)
		}
		return
	}
	applied = permissions
	return
}

// UpdatePassword sets a new password for a user.
func (s *UserService) UpdatePassword(ctx context.Context, params UpdatePasswordParams) (err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdatePassword", "principal_id", params.Principal.UserID, "user_id", params.UserID)
	defer func() {
		logOutcome(ctx, logger, err, "password updated")
	}()

	if decision := policy.Evaluate(policy.UpdatePassword, params.Principal.caller(), policy.Target{UserID: params.UserID}); !decision.Allowed {
		err = forbidden(decision)
		return
	}
	if params.Password == "" {
		err = NewValidationError("password", "password is required")
		return
	}

	var hash string
	if hash, err = s.hash(params.Password); err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}
	if err = s.users.UpdatePassword(ctx, params.UserID, hash); err != nil && errors.Is(err, ErrNotFound) {
		err = fmt.Errorf("%w: user %d", ErrNotFound, params.UserID)
	}
	return
}

func (s *UserService) getUser(ctx context.Context, userID int64) (User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return User{}, fmt.Errorf("%w: user %d", ErrNotFound, userID)
		}
		return User{}, err
	}
	return user, nil
}

func validateCredentials(username, password string) *ValidationError {
	vErr := &ValidationError{}
	if username == "" {
		vErr.add("username", "username is required")
	}
	if password == "" {
		vErr.add("password", "password is required")
	}
	return vErr
}
