package model

import (
	"strconv"
	"time"
)

type Sex string

const (
	SexMale    Sex = "M"
	SexFemale  Sex = "F"
	SexOther   Sex = "O"
	SexUnknown Sex = ""
)

type Patient struct {
	ID        int64      `db:"id" json:"id" xml:"id"`
	PtNumber  int64      `db:"ptnumber" json:"ptNumber" xml:"ptnumber" validate:"gt=0"`
	Name      string     `db:"name" json:"name" xml:"name" validate:"required,max=200"`
	Age       *int       `db:"age" json:"age,omitempty" xml:"age,omitempty" validate:"omitempty,gte=0,lte=150"`
	BirthDate *time.Time `db:"birth_date" json:"birthDate,omitempty" xml:"birthdate,omitempty"`
	Sex       Sex        `db:"sex" json:"sex" xml:"sex" validate:"omitempty,oneof=M F O"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt" xml:"createdat"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt" xml:"updatedat"`
}

// DedupKey identifies a patient across imports.
func (p Patient) DedupKey() string {
	return strconv.FormatInt(p.PtNumber, 10)
}
