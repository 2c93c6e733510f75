package importer

import (
	"fmt"
	"strings"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/repository"
	"github.com/jwalitptl/radiology-api/pkg/security"
)

// Default batch sizes per entity.
const (
	PatientBatchSize      = 1000
	ReportBatchSize       = 500
	ScheduleBatchSize     = 200
	DoctorBatchSize       = 50
	TeachingFileBatchSize = 100
	DicomBatchSize        = 500
)

var ptNumberAliases = map[string]string{
	"patientnumber": "ptnumber",
	"patientno":     "ptnumber",
	"patientid":     "ptnumber",
	"ptno":          "ptnumber",
	"pid":           "ptnumber",
}

func withPtNumber(aliases map[string]string) map[string]string {
	out := make(map[string]string, len(aliases)+len(ptNumberAliases))
	for k, v := range ptNumberAliases {
		out[k] = v
	}
	for k, v := range aliases {
		out[k] = v
	}
	return out
}

func PatientEntity(store repository.BatchWriter[model.Patient], batchSize int) *Entity[model.Patient] {
	return &Entity[model.Patient]{
		Name:      "patients",
		Plural:    "patients",
		Singular:  "patient",
		BatchSize: batchSize,
		Aliases: withPtNumber(map[string]string{
			"patientname": "name",
			"dob":         "birthdate",
			"birthday":    "birthdate",
			"dateofbirth": "birthdate",
			"gender":      "sex",
		}),
		Build: func(f *fields, _ RunMeta) (model.Patient, error) {
			return model.Patient{
				PtNumber:  f.RequireInt("ptnumber"),
				Name:      f.RequireText("name"),
				Age:       f.SmallInt("age"),
				BirthDate: f.Date("birthdate"),
				Sex:       normalizeSex(f.Text("sex")),
			}, nil
		},
		Key:   model.Patient.DedupKey,
		Store: store,
	}
}

func ReportEntity(store repository.BatchWriter[model.Report], batchSize int) *Entity[model.Report] {
	return &Entity[model.Report]{
		Name:      "reports",
		Plural:    "reports",
		Singular:  "report",
		BatchSize: batchSize,
		Aliases: withPtNumber(map[string]string{
			"studydate":      "examdate",
			"date":           "examdate",
			"dept":           "department",
			"findings":       "report",
			"reporttext":     "report",
			"body":           "report",
			"impression":     "conclusion",
			"orderingdoctor": "doctor",
			"physician":      "doctor",
			"author":         "inputby",
			"inputdate":      "inputat",
		}),
		Build: func(f *fields, meta RunMeta) (model.Report, error) {
			r := model.Report{
				PtNumber:   f.RequireInt("ptnumber"),
				ExamDate:   f.RequireDate("examdate"),
				Modality:   strings.ToUpper(f.RequireText("modality")),
				Doctor:     f.Text("doctor"),
				Department: f.Text("department"),
				Diagnosis:  f.Text("diagnosis"),
				Conclusion: f.Text("conclusion"),
				Body:       f.Text("report"),
				InputBy:    f.Text("inputby"),
				InputAt:    f.Timestamp("inputat"),
			}
			if r.InputBy == "" {
				r.InputBy = meta.Actor
			}
			if r.InputAt == nil && !meta.Now.IsZero() {
				now := meta.Now
				r.InputAt = &now
			}
			return r, nil
		},
		Key:    model.Report.DedupKey,
		Parent: func(r model.Report) int64 { return r.PtNumber },
		Soft:   model.Report.MissingBody,
		Store:  store,
	}
}

func ScheduleEntity(store repository.BatchWriter[model.Schedule], batchSize int) *Entity[model.Schedule] {
	return &Entity[model.Schedule]{
		Name:      "schedules",
		Plural:    "schedules",
		Singular:  "schedule",
		BatchSize: batchSize,
		Aliases: withPtNumber(map[string]string{
			"start":     "startat",
			"starttime": "startat",
			"examstart": "startat",
			"end":       "endat",
			"endtime":   "endat",
			"examend":   "endat",
			"dept":      "department",
			"procedure": "procedurename",
			"note":      "memo",
		}),
		Build: func(f *fields, _ RunMeta) (model.Schedule, error) {
			return model.Schedule{
				PtNumber:      f.RequireInt("ptnumber"),
				StartAt:       f.RequireTimestamp("startat"),
				EndAt:         f.RequireTimestamp("endat"),
				Department:    f.Text("department"),
				Doctor:        f.Text("doctor"),
				ProcedureName: f.Text("procedurename"),
				Memo:          f.Text("memo"),
			}, nil
		},
		Parent: func(s model.Schedule) int64 { return s.PtNumber },
		Store:  store,
	}
}

// DoctorEntity hashes plain passwords with hasher. Values that are already
// bcrypt hashes are stored as they are.
func DoctorEntity(store repository.BatchWriter[model.Doctor], batchSize int, hasher security.PasswordHasher) *Entity[model.Doctor] {
	return &Entity[model.Doctor]{
		Name:      "doctors",
		Plural:    "doctors",
		Singular:  "doctor",
		BatchSize: batchSize,
		Aliases: map[string]string{
			"employeeno":   "employeenumber",
			"empno":        "employeenumber",
			"employeeid":   "employeenumber",
			"dept":         "department",
			"level":        "accesslevel",
			"pw":           "password",
			"passwd":       "password",
			"passwordhash": "password",
		},
		Build: func(f *fields, _ RunMeta) (model.Doctor, error) {
			d := model.Doctor{
				EmployeeNumber: f.RequireText("employeenumber"),
				Name:           f.RequireText("name"),
				Department:     f.Text("department"),
				Hospital:       f.Text("hospital"),
				AccessLevel:    model.AccessLevelUser,
			}
			if lvl := f.SmallInt("accesslevel"); lvl != nil {
				d.AccessLevel = model.AccessLevel(*lvl)
			}
			password := f.RequireText("password")
			if f.Err() != nil {
				return d, nil
			}
			if security.IsBcryptHash(password) {
				d.PasswordHash = password
				return d, nil
			}
			hash, err := hasher.Hash(password)
			if err != nil {
				return d, fmt.Errorf("password: %w", err)
			}
			d.PasswordHash = hash
			return d, nil
		},
		Key:   model.Doctor.DedupKey,
		Store: store,
	}
}

func TeachingFileEntity(store repository.BatchWriter[model.TeachingFile], batchSize int) *Entity[model.TeachingFile] {
	return &Entity[model.TeachingFile]{
		Name:      "teaching-files",
		Plural:    "teachingfiles",
		Singular:  "teachingfile",
		BatchSize: batchSize,
		Aliases: withPtNumber(map[string]string{
			"series":            "seriesid",
			"seriesuid":         "seriesid",
			"seriesinstanceuid": "seriesid",
			"difficultylevel":   "difficulty",
			"level":             "difficulty",
			"ispublished":       "published",
			"public":            "published",
			"casehistory":       "history",
		}),
		Build: func(f *fields, _ RunMeta) (model.TeachingFile, error) {
			return model.TeachingFile{
				PtNumber:    f.RequireInt("ptnumber"),
				SeriesID:    f.RequireText("seriesid"),
				Title:       f.Text("title"),
				History:     f.Text("history"),
				Answer:      f.Text("answer"),
				Explanation: f.Text("explanation"),
				Difficulty:  f.SmallInt("difficulty"),
				Published:   f.Bool("published"),
			}, nil
		},
		Parent: func(t model.TeachingFile) int64 { return t.PtNumber },
		Store:  store,
	}
}

func DicomEntity(store repository.BatchWriter[model.DicomRecord], batchSize int) *Entity[model.DicomRecord] {
	return &Entity[model.DicomRecord]{
		Name:      "dicom",
		Plural:    "dicom",
		Singular:  "series",
		BatchSize: batchSize,
		Aliases: withPtNumber(map[string]string{
			"seq":            "seqno",
			"sequence":       "seqno",
			"sequencenumber": "seqno",
			"seriesnumber":   "seqno",
			"studydate":      "examdate",
			"images":         "imagecount",
			"numimages":      "imagecount",
			"numberofframes": "imagecount",
			"filepath":       "path",
			"storagepath":    "path",
		}),
		Build: func(f *fields, _ RunMeta) (model.DicomRecord, error) {
			d := model.DicomRecord{
				PtNumber:   f.RequireInt("ptnumber"),
				SeqNo:      f.RequireSmallInt("seqno"),
				ExamDate:   f.RequireDate("examdate"),
				Modality:   strings.ToUpper(f.RequireText("modality")),
				ImageCount: 1,
				Path:       f.Text("path"),
			}
			if n := f.SmallInt("imagecount"); n != nil {
				d.ImageCount = *n
			}
			return d, nil
		},
		Key:    model.DicomRecord.DedupKey,
		Parent: func(d model.DicomRecord) int64 { return d.PtNumber },
		Store:  store,
		DICOM:  true,
	}
}

func normalizeSex(s string) model.Sex {
	switch strings.ToLower(s) {
	case "":
		return model.SexUnknown
	case "m", "male", "man", "남", "남자":
		return model.SexMale
	case "f", "female", "woman", "여", "여자":
		return model.SexFemale
	default:
		return model.SexOther
	}
}
