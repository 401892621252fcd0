package directory

import (
	"context"
	"time"
)

// EmployeeStatus represents an employee's standing in the directory.
type EmployeeStatus string

const (
	EmployeeStatusActive     EmployeeStatus = "active"
	EmployeeStatusOnLeave    EmployeeStatus = "on_leave"
	EmployeeStatusTerminated EmployeeStatus = "terminated"
)

// Employee is a read-only view of one directory record. The directory is an
// external collaborator; the engine never mutates it.
type Employee struct {
	ID        string         `json:"id" yaml:"id"`
	CompanyID string         `json:"company_id" yaml:"company_id"`
	RoleID    string         `json:"role_id" yaml:"role_id"`
	ManagerID string         `json:"manager_id,omitempty" yaml:"manager_id,omitempty"`
	JoinDate  time.Time      `json:"join_date" yaml:"join_date"`
	Status    EmployeeStatus `json:"status" yaml:"status"`
}

// Directory exposes the employee reads the engine needs: single lookup for
// authorization and due-date math, and role fan-out for campaign expansion.
type Directory interface {
	// Employee returns one record by ID.
	Employee(ctx context.Context, id string) (*Employee, error)

	// ActiveByRole returns the active employees holding a role within a
	// company.
	ActiveByRole(ctx context.Context, companyID, roleID string) ([]*Employee, error)
}
