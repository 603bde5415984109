package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/example/billboard-server/internal/policy"
)

// BillboardRepository captures the persistence operations needed by the billboard service.
type BillboardRepository interface {
	CreateBillboard(ctx context.Context, billboard Billboard) (int64, error)
	UpdateBillboard(ctx context.Context, billboard Billboard) error
	GetBillboard(ctx context.Context, id int64) (Billboard, error)
	GetBillboardByName(ctx context.Context, name string) (Billboard, error)
	ListBillboards(ctx context.Context) ([]Billboard, error)
	HasSchedules(ctx context.Context, id int64) (bool, error)
	DeleteBillboard(ctx context.Context, id int64) error
}

// BillboardService orchestrates validation, authorization and persistence for billboards.
type BillboardService struct {
	billboards BillboardRepository
	logger     *slog.Logger
}

// NewBillboardService wires dependencies for the billboard service.
func NewBillboardService(billboards BillboardRepository, logger *slog.Logger) *BillboardService {
	return &BillboardService{billboards: billboards, logger: defaultLogger(logger)}
}

func (s *BillboardService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BillboardService", operation, attrs...)
}

// ListBillboards returns every billboard without content, ordered by name.
func (s *BillboardService) ListBillboards(ctx context.Context) ([]Billboard, error) {
	if s == nil || s.billboards == nil {
		return nil, fmt.Errorf("billboard repository not configured")
	}
	return s.billboards.ListBillboards(ctx)
}

// CreateBillboard stores a new billboard owned by the principal.
func (s *BillboardService) CreateBillboard(ctx context.Context, params CreateBillboardParams) (billboard Billboard, err error) {
	if s == nil || s.billboards == nil {
		err = fmt.Errorf("billboard repository not configured")
		return
	}

	name := strings.TrimSpace(params.Name)
	logger := s.loggerWith(ctx, "CreateBillboard", "principal_id", params.Principal.UserID, "name", name)
	defer func() {
		logOutcome(ctx, logger, err, "billboard created", "billboard_id", billboard.ID)
	}()

	decision := policy.Evaluate(policy.CreateBillboard, params.Principal.caller(), policy.Target{})
	if !decision.Allowed {
		err = forbidden(decision)
		return
	}

	if vErr := validateBillboard(name, params.Content); vErr.HasErrors() {
		err = vErr
		return
	}

	candidate := Billboard{
		Name:    name,
		OwnerID: params.Principal.UserID,
		Content: params.Content,
	}
	candidate.ID, err = s.billboards.CreateBillboard(ctx, candidate)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			err = fmt.Errorf("%w: billboard name %q already in use", ErrConflict, name)
		}
		return
	}
	billboard = candidate
	return
}

// UpdateBillboard renames and rewrites an existing billboard.
func (s *BillboardService) UpdateBillboard(ctx context.Context, params UpdateBillboardParams) (billboard Billboard, err error) {
	if s == nil || s.billboards == nil {
		err = fmt.Errorf("billboard repository not configured")
		return
	}

	name := strings.TrimSpace(params.Name)
	logger := s.loggerWith(ctx, "UpdateBillboard", "principal_id", params.Principal.UserID, "billboard_id", params.BillboardID)
	defer func() {
		logOutcome(ctx, logger, err, "billboard updated")
	}()

	var existing Billboard
	existing, err = s.authorizeMutation(ctx, policy.UpdateBillboard, params.Principal, params.BillboardID)
	if err != nil {
		return
	}

	if vErr := validateBillboard(name, params.Content); vErr.HasErrors() {
		err = vErr
		return
	}

	existing.Name = name
	existing.Content = params.Content
	if err = s.billboards.UpdateBillboard(ctx, existing); err != nil {
		if errors.Is(err, ErrConflict) {
			err = fmt.Errorf("%w: billboard name %q already in use", ErrConflict, name)
		}
		return
	}
	billboard = existing
	return
}

// DeleteBillboard removes a billboard along with all of its schedules.
func (s *BillboardService) DeleteBillboard(ctx context.Context, principal Principal, billboardID int64) (err error) {
	if s == nil || s.billboards == nil {
		return fmt.Errorf("billboard repository not configured")
	}

	logger := s.loggerWith(ctx, "DeleteBillboard", "principal_id", principal.UserID, "billboard_id", billboardID)
	defer func() {
		logOutcome(ctx, logger, err, "billboard deleted")
	}()

	if _, err = s.authorizeMutation(ctx, policy.DeleteBillboard, principal, billboardID); err != nil {
		return
	}
	err = s.billboards.DeleteBillboard(ctx, billboardID)
	return
}

// authorizeMutation loads the billboard and applies the ownership rules for op.
func (s *BillboardService) authorizeMutation(ctx context.Context, op policy.Operation, principal Principal, billboardID int64) (Billboard, error) {
	existing, err := s.getBillboard(ctx, billboardID)
	if err != nil {
		return Billboard{}, err
	}

	scheduled, err := s.billboards.HasSchedules(ctx, billboardID)
	if err != nil {
		return Billboard{}, err
	}

	decision := policy.Evaluate(op, principal.caller(), policy.Target{
		BillboardOwnerID:   existing.OwnerID,
		BillboardScheduled: scheduled,
	})
	if !decision.Allowed {
		return Billboard{}, forbidden(decision)
	}
	return existing, nil
}

// BillboardNameExists reports whether a billboard called name is stored.
func (s *BillboardService) BillboardNameExists(ctx context.Context, principal Principal, name string) (bool, error) {
	if s == nil || s.billboards == nil {
		return false, fmt.Errorf("billboard repository not configured")
	}
	if decision := policy.Evaluate(policy.BillboardNameExists, principal.caller(), policy.Target{}); !decision.Allowed {
		return false, forbidden(decision)
	}

	_, err := s.billboards.GetBillboardByName(ctx, strings.TrimSpace(name))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// GetBillboard returns the billboard with its content.
func (s *BillboardService) GetBillboard(ctx context.Context, billboardID int64) (Billboard, error) {
	if s == nil || s.billboards == nil {
		return Billboard{}, fmt.Errorf("billboard repository not configured")
	}
	return s.getBillboard(ctx, billboardID)
}

// GetBillboardName returns the name of the billboard.
func (s *BillboardService) GetBillboardName(ctx context.Context, billboardID int64) (string, error) {
	billboard, err := s.GetBillboard(ctx, billboardID)
	if err != nil {
		return "", err
	}
	return billboard.Name, nil
}

// GetBillboardCreatorName returns the username of the billboard's owner.
func (s *BillboardService) GetBillboardCreatorName(ctx context.Context, billboardID int64) (string, error) {
	billboard, err := s.GetBillboard(ctx, billboardID)
	if err != nil {
		return "", err
	}
	return billboard.OwnerUsername, nil
}

// GetBillboardID looks a billboard up by name.
func (s *BillboardService) GetBillboardID(ctx context.Context, name string) (int64, error) {
	if s == nil || s.billboards == nil {
		return 0, fmt.Errorf("billboard repository not configured")
	}
	name = strings.TrimSpace(name)
	billboard, err := s.billboards.GetBillboardByName(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("%w: billboard %q", ErrNotFound, name)
		}
		return 0, err
	}
	return billboard.ID, nil
}

func (s *BillboardService) getBillboard(ctx context.Context, billboardID int64) (Billboard, error) {
	billboard, err := s.billboards.GetBillboard(ctx, billboardID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Billboard{}, fmt.Errorf("%w: billboard %d", ErrNotFound, billboardID)
		}
		return Billboard{}, err
	}
	return billboard, nil
}

func validateBillboard(name string, content []byte) *ValidationError {
	vErr := &ValidationError{}
	if name == "" {
		vErr.add("name", "name is required")
	}
	if len(content) == 0 {
		vErr.add("content", "content is required")
	}
	return vErr
}
