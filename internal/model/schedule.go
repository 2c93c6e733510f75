package model

import "time"

type Schedule struct {
	ID            int64     `db:"id" json:"id" xml:"id"`
	PtNumber      int64     `db:"ptnumber" json:"ptNumber" xml:"ptnumber" validate:"gt=0"`
	StartAt       time.Time `db:"start_at" json:"startAt" xml:"startat" validate:"required"`
	EndAt         time.Time `db:"end_at" json:"endAt" xml:"endat" validate:"required,gtefield=StartAt"`
	Department    string    `db:"department" json:"department" xml:"department"`
	Doctor        string    `db:"doctor" json:"doctor" xml:"doctor"`
	ProcedureName string    `db:"procedure_name" json:"procedureName" xml:"procedurename"`
	Memo          string    `db:"memo" json:"memo" xml:"memo"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt" xml:"createdat"`
}
