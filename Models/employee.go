package Models

// Employee is one entry of master_employees.json. The server never writes it.
type Employee struct {
	EmployeeID int64  `json:"employeeId"`
	Username   string `json:"username"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName,omitempty"`
	Email      string `json:"email,omitempty"`
}
