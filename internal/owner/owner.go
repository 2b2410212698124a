// Package owner hides employees from owner listings without deleting them.
package owner

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"dealops/internal/logging"
	"dealops/internal/store"
)

type Outcome string

const (
	Deactivated     Outcome = "deactivated"
	AlreadyInactive Outcome = "already inactive"
	NotFound        Outcome = "not found"
)

type dataStore interface {
	GetEmployee(context.Context, string) (store.Employee, error)
	SetEmployeeStatus(context.Context, string, string) (int64, error)
}

type Service struct {
	store  dataStore
	logger *zap.Logger
}

func New(s dataStore, logger *zap.Logger) *Service {
	return &Service{store: s, logger: logging.OrNop(logger).Named("owner")}
}

// Deactivate marks the employee inactive. An unknown id is reported as
// NotFound rather than an error.
func (s *Service) Deactivate(ctx context.Context, employeeID string) (Outcome, error) {
	employee, err := s.store.GetEmployee(ctx, employeeID)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Warn("employee not found", zap.String("employee_id", employeeID))
		return NotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("deactivate %s: %w", employeeID, err)
	}
	if employee.Status == store.EmployeeInactive {
		s.logger.Info("employee already inactive", zap.String("employee_id", employeeID))
		return AlreadyInactive, nil
	}

	rows, err := s.store.SetEmployeeStatus(ctx, employeeID, store.EmployeeInactive)
	if err != nil {
		return "", fmt.Errorf("deactivate %s: %w", employeeID, err)
	}
	if rows == 0 {
		s.logger.Warn("employee not found", zap.String("employee_id", employeeID))
		return NotFound, nil
	}
	s.logger.Info("employee deactivated", zap.String("employee_id", employeeID), zap.String("name", employee.Name))
	return Deactivated, nil
}
