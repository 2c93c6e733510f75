package model

import "time"

type AccessLevel int

const (
	AccessLevelUser    AccessLevel = 1
	AccessLevelManager AccessLevel = 5
	AccessLevelAdmin   AccessLevel = 9
)

// Doctor is both a staff record and the authentication principal.
type Doctor struct {
	ID             int64       `db:"id" json:"id" xml:"id"`
	EmployeeNumber string      `db:"employee_number" json:"employeeNumber" xml:"employeenumber" validate:"required,max=32"`
	Name           string      `db:"name" json:"name" xml:"name" validate:"required,max=100"`
	Department     string      `db:"department" json:"department" xml:"department"`
	Hospital       string      `db:"hospital" json:"hospital" xml:"hospital"`
	AccessLevel    AccessLevel `db:"access_level" json:"accessLevel" xml:"accesslevel" validate:"gte=0,lte=9"`
	PasswordHash   string      `db:"password_hash" json:"-" xml:"-" validate:"required"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt" xml:"createdat"`
}

func (d Doctor) DedupKey() string {
	return d.EmployeeNumber
}

func (d Doctor) IsAdmin() bool {
	return d.AccessLevel >= AccessLevelAdmin
}
