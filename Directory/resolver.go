package Directory

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"AviCRM/Models"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Entry is the resolved identity and storage scope of one employee.
type Entry struct {
	EmployeeID int64
	Username   string
	FirstName  string
	ProfileDir string
	// Resolved is false when the username was synthesized because the
	// registry had no matching employee.
	Resolved bool
}

// Resolver maps employees to profile directories using master_employees.json.
// The registry is optional: lookups that cannot use it fall back to a
// synthesized identity instead of failing.
type Resolver struct {
	dataDir      string
	registryPath string
}

func NewResolver(dataDir, registryPath string) *Resolver {
	return &Resolver{dataDir: dataDir, registryPath: registryPath}
}

func (r *Resolver) DataDir() string {
	return r.dataDir
}

// ProfileDirName keeps the EMP_00<id> layout existing profile folders use.
func ProfileDirName(employeeID int64) string {
	return fmt.Sprintf("EMP_00%d", employeeID)
}

var profileDirPattern = regexp.MustCompile(`^EMP_00(\d+)$`)

// ParseProfileDirName is the inverse of ProfileDirName.
func ParseProfileDirName(name string) (int64, bool) {
	m := profileDirPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// SynthesizedUsername is the username used for employees missing from the registry.
func SynthesizedUsername(employeeID int64) string {
	return fmt.Sprintf("user%d", employeeID)
}

var synthesizedPattern = regexp.MustCompile(`^user(\d+)$`)

func (r *Resolver) profileDir(employeeID int64) string {
	return filepath.Join(r.dataDir, ProfileDirName(employeeID))
}

func (r *Resolver) loadRegistry() ([]Models.Employee, error) {
	data, err := os.ReadFile(r.registryPath)
	if err != nil {
		return nil, err
	}
	var employees []Models.Employee
	if err := json5.Unmarshal(data, &employees); err != nil {
		return nil, fmt.Errorf("parse %s: %w", r.registryPath, err)
	}
	return employees, nil
}

// Resolve never fails; an unknown employee gets user<id> with Resolved=false.
func (r *Resolver) Resolve(employeeID int64) Entry {
	entry := Entry{
		EmployeeID: employeeID,
		Username:   SynthesizedUsername(employeeID),
		ProfileDir: r.profileDir(employeeID),
	}

	employees, err := r.loadRegistry()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("Employee registry unreadable, using synthesized username for %d: %v", employeeID, err)
		}
		return entry
	}

	for _, emp := range employees {
		if emp.EmployeeID == employeeID && emp.Username != "" {
			entry.Username = emp.Username
			entry.FirstName = emp.FirstName
			entry.Resolved = true
			break
		}
	}
	return entry
}

// ResolveUsername finds the employee owning username. Registry matches are
// exact first, then case-insensitive; a synthesized user<id> name maps back
// to its id. Anything else is Models.ErrNotFound.
func (r *Resolver) ResolveUsername(username string) (Entry, error) {
	employees, err := r.loadRegistry()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Employee registry unreadable while resolving %q: %v", username, err)
	}

	if match, ok := findByUsername(employees, username); ok {
		return Entry{
			EmployeeID: match.EmployeeID,
			Username:   match.Username,
			FirstName:  match.FirstName,
			ProfileDir: r.profileDir(match.EmployeeID),
			Resolved:   true,
		}, nil
	}

	if m := synthesizedPattern.FindStringSubmatch(username); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && id > 0 {
			return Entry{
				EmployeeID: id,
				Username:   username,
				ProfileDir: r.profileDir(id),
			}, nil
		}
	}

	return Entry{}, fmt.Errorf("employee %q: %w", username, Models.ErrNotFound)
}

func findByUsername(employees []Models.Employee, username string) (Models.Employee, bool) {
	for _, emp := range employees {
		if emp.Username == username {
			return emp, true
		}
	}
	for _, emp := range employees {
		if emp.Username != "" && strings.EqualFold(emp.Username, username) {
			return emp, true
		}
	}
	return Models.Employee{}, false
}

// ResolveIdentity accepts either an employee id or a username.
func (r *Resolver) ResolveIdentity(identity string) (Entry, error) {
	if id, err := strconv.ParseInt(identity, 10, 64); err == nil && id > 0 {
		return r.Resolve(id), nil
	}
	return r.ResolveUsername(identity)
}
