package importer

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const (
	DefaultFileField = "file"
	// formOverhead covers multipart boundaries and small form fields on top
	// of the file size limit.
	formOverhead = 1 << 20
	maxFieldSize = 4 << 10
)

var allowedMIME = map[Format][]string{
	FormatJSONStream: {"application/json", "text/json", "text/plain"},
	FormatJSON:       {"application/json", "text/json", "text/plain"},
	FormatCSV:        {"text/csv", "application/csv", "text/comma-separated-values", "application/vnd.ms-excel", "text/plain"},
	FormatXML:        {"application/xml", "text/xml", "text/plain"},
	FormatDICOM:      {"application/dicom"},
}

// Upload is a received file spooled to disk.
type Upload struct {
	Path     string
	Filename string
	Size     int64
	Format   Format
	Fields   map[string]string
}

func (u *Upload) Open() (*os.File, error) {
	return os.Open(u.Path)
}

// Remove deletes the spooled file. It is safe to call more than once.
func (u *Upload) Remove() error {
	if u == nil || u.Path == "" {
		return nil
	}
	err := os.Remove(u.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

type Receiver struct {
	TempDir   string
	FieldName string
}

func NewReceiver(tempDir string) *Receiver {
	return &Receiver{TempDir: tempDir, FieldName: DefaultFileField}
}

// Receive streams the single file part of a multipart request to a temp
// file. The file must be at most limit bytes and carry an extension and
// content type allowed for one of formats. On error nothing is left on disk.
func (rc *Receiver) Receive(w http.ResponseWriter, req *http.Request, limit int64, formats ...Format) (upload *Upload, err error) {
	req.Body = http.MaxBytesReader(w, req.Body, limit+formOverhead)

	mr, err := req.MultipartReader()
	if err != nil {
		return nil, fmt.Errorf("%w: expected multipart/form-data: %v", ErrMissingFile, err)
	}

	defer func() {
		if err != nil && upload != nil {
			_ = upload.Remove()
			upload = nil
		}
	}()

	fields := make(map[string]string)
	for {
		part, perr := mr.NextPart()
		if errors.Is(perr, io.EOF) {
			break
		}
		if perr != nil {
			return upload, bodyError(perr)
		}

		if part.FileName() == "" {
			v, rerr := io.ReadAll(io.LimitReader(part, maxFieldSize))
			_ = part.Close()
			if rerr != nil {
				return upload, bodyError(rerr)
			}
			fields[part.FormName()] = string(v)
			continue
		}

		if part.FormName() != rc.FieldName || upload != nil {
			_, _ = io.Copy(io.Discard, part)
			_ = part.Close()
			continue
		}

		format, ferr := matchFormat(part.FileName(), part.Header.Get("Content-Type"), formats)
		if ferr != nil {
			_ = part.Close()
			return upload, ferr
		}

		upload, err = rc.spool(part, limit)
		_ = part.Close()
		if err != nil {
			return upload, err
		}
		upload.Format = format
	}

	if upload == nil {
		return nil, fmt.Errorf("%w: expected a file in field %q", ErrMissingFile, rc.FieldName)
	}
	upload.Fields = fields
	return upload, nil
}

func (rc *Receiver) spool(part *multipart.Part, limit int64) (*Upload, error) {
	name := part.FileName()
	f, err := os.CreateTemp(rc.TempDir, "radis-upload-*"+strings.ToLower(filepath.Ext(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	upload := &Upload{Path: f.Name(), Filename: filepath.Base(name)}

	n, err := io.Copy(f, io.LimitReader(part, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	upload.Size = n

	switch {
	case err != nil:
		return upload, bodyError(err)
	case n > limit:
		return upload, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, limit)
	case n == 0:
		return upload, fmt.Errorf("%w: file is empty", ErrMissingFile)
	}
	return upload, nil
}

func bodyError(err error) error {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		return fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, tooBig.Limit-formOverhead)
	}
	return fmt.Errorf("failed to read upload: %w", err)
}

// matchFormat checks the extension against formats and the declared content
// type against that format's allow-list. Generic binary content types are
// accepted since browsers send them for unknown extensions.
func matchFormat(filename, contentType string, formats []Format) (Format, error) {
	format, ok := FormatForFile(filename)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(filename))
	}

	var chosen Format
	for _, f := range formats {
		if f == format || (format == FormatJSONStream && f == FormatJSON) {
			chosen = f
			break
		}
	}
	if chosen == "" {
		return "", fmt.Errorf("%w: %s files are not accepted here", ErrUnsupportedFormat, format)
	}

	if contentType == "" {
		return chosen, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: bad content type %q", ErrUnsupportedFormat, contentType)
	}
	if mediaType == "application/octet-stream" {
		return chosen, nil
	}
	for _, allowed := range allowedMIME[chosen] {
		if mediaType == allowed {
			return chosen, nil
		}
	}
	return "", fmt.Errorf("%w: content type %q", ErrUnsupportedFormat, mediaType)
}
