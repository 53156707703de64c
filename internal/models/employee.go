package models

// Employee is a directory entry used to resolve approver and requester names.
type Employee struct {
	ID   string `db:"emp_id" json:"empId"`
	Name string `db:"emp_name" json:"empName"`
}
