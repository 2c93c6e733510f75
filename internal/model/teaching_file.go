package model

import "time"

type TeachingFile struct {
	ID          int64     `db:"id" json:"id" xml:"id"`
	PtNumber    int64     `db:"ptnumber" json:"ptNumber" xml:"ptnumber" validate:"gt=0"`
	SeriesID    string    `db:"series_id" json:"seriesId" xml:"seriesid" validate:"required,max=128"`
	Title       string    `db:"title" json:"title" xml:"title"`
	History     string    `db:"history" json:"history" xml:"history"`
	Answer      string    `db:"answer" json:"answer" xml:"answer"`
	Explanation string    `db:"explanation" json:"explanation" xml:"explanation"`
	Difficulty  *int      `db:"difficulty" json:"difficulty,omitempty" xml:"difficulty,omitempty" validate:"omitempty,gte=1,lte=5"`
	Published   bool      `db:"published" json:"published" xml:"published"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt" xml:"createdat"`
}
