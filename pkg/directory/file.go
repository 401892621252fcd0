package directory

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"mercator-hq/themis/pkg/compliance"
)

// StaticDirectory serves a fixed set of employee records from memory.
// It backs both tests and the file-backed directory.
type StaticDirectory struct {
	mu        sync.RWMutex
	employees map[string]*Employee
}

// NewStaticDirectory creates a directory over the given records.
func NewStaticDirectory(employees []*Employee) *StaticDirectory {
	d := &StaticDirectory{employees: make(map[string]*Employee, len(employees))}
	for _, e := range employees {
		cp := *e
		d.employees[e.ID] = &cp
	}
	return d
}

// Employee returns one record by ID.
func (d *StaticDirectory) Employee(ctx context.Context, id string) (*Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.employees[id]
	if !ok {
		return nil, compliance.NewNotFoundError("employee", id)
	}
	cp := *e
	return &cp, nil
}

// ActiveByRole returns the active employees holding a role within a company.
func (d *StaticDirectory) ActiveByRole(ctx context.Context, companyID, roleID string) ([]*Employee, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := []*Employee{}
	for _, e := range d.employees {
		if e.CompanyID == companyID && e.RoleID == roleID && e.Status == EmployeeStatusActive {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// replace swaps the record set.
func (d *StaticDirectory) replace(employees []*Employee) {
	next := make(map[string]*Employee, len(employees))
	for _, e := range employees {
		cp := *e
		next[e.ID] = &cp
	}
	d.mu.Lock()
	d.employees = next
	d.mu.Unlock()
}

// employeeFile is the YAML layout of a directory file.
type employeeFile struct {
	Employees []*Employee `yaml:"employees"`
}

// LoadFileDirectory reads a YAML employee file into a StaticDirectory.
// Reload re-reads the same path, for deployments that sync the file from an
// HR system.
func LoadFileDirectory(path string) (*FileDirectory, error) {
	d := &FileDirectory{
		StaticDirectory: NewStaticDirectory(nil),
		path:            path,
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// FileDirectory is a StaticDirectory populated from a YAML file.
type FileDirectory struct {
	*StaticDirectory
	path string
}

// Reload re-reads the employee file and atomically swaps the record set.
func (d *FileDirectory) Reload() error {
	data, err := os.ReadFile(d.path)
	if err != nil {
		return fmt.Errorf("failed to read directory file %q: %w", d.path, err)
	}
	var f employeeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse directory file %q: %w", d.path, err)
	}
	for _, e := range f.Employees {
		if e.ID == "" {
			return fmt.Errorf("directory file %q: employee with empty id", d.path)
		}
	}
	d.replace(f.Employees)
	return nil
}
