package model

import (
	"fmt"
	"time"
)

// DicomRecord describes one imaging series.
type DicomRecord struct {
	ID         int64     `db:"id" json:"id" xml:"id"`
	PtNumber   int64     `db:"ptnumber" json:"ptNumber" xml:"ptnumber" validate:"gt=0"`
	SeqNo      int       `db:"seqno" json:"seqNo" xml:"seqno" validate:"gte=0"`
	ExamDate   time.Time `db:"exam_date" json:"examDate" xml:"examdate" validate:"required"`
	Modality   string    `db:"modality" json:"modality" xml:"modality" validate:"required,max=16"`
	ImageCount int       `db:"image_count" json:"imageCount" xml:"imagecount" validate:"gte=0"`
	Path       string    `db:"path" json:"path" xml:"path"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt" xml:"createdat"`
}

func (d DicomRecord) DedupKey() string {
	return fmt.Sprintf("%d|%d", d.PtNumber, d.SeqNo)
}
