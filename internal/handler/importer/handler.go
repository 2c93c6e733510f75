package importer

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/radiology-api/internal/importer"
	"github.com/jwalitptl/radiology-api/internal/middleware"
	"github.com/jwalitptl/radiology-api/internal/model"
)

// Limits are the upload size tiers in bytes.
type Limits struct {
	Default int64
	Small   int64
	Large   int64
}

type Handler struct {
	svc      *importer.Service
	receiver *importer.Receiver
	limits   Limits
	logger   zerolog.Logger
}

func NewHandler(svc *importer.Service, receiver *importer.Receiver, limits Limits, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:      svc,
		receiver: receiver,
		limits:   limits,
		logger:   logger.With().Str("component", "import-handler").Logger(),
	}
}

// RegisterRoutes adds the import endpoints of entity under r, which is the
// entity's group, e.g. /api/reports.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup, entity string, layout importer.Layout) {
	text := []importer.Format{importer.FormatJSONStream, importer.FormatCSV, importer.FormatXML}
	all := text
	if layout.DICOM {
		all = append(append([]importer.Format{}, text...), importer.FormatDICOM)
	}

	imp := r.Group("/import")
	{
		imp.POST("", h.handle(entity, h.limits.Default, all...))
		imp.POST("/json", h.handle(entity, h.limits.Default, importer.FormatJSON))
		imp.POST("/json-small", h.handle(entity, h.limits.Small, importer.FormatJSON))
		imp.POST("/json-robust", h.handle(entity, h.limits.Large, importer.FormatJSONStream))
		imp.POST("/csv", h.handle(entity, h.limits.Default, importer.FormatCSV))
		imp.POST("/xml", h.handle(entity, h.limits.Default, importer.FormatXML))
		if layout.DICOM {
			imp.POST("/dcm", h.handle(entity, h.limits.Large, importer.FormatDICOM))
		}
	}
}

func (h *Handler) handle(entity string, limit int64, formats ...importer.Format) gin.HandlerFunc {
	return func(c *gin.Context) {
		upload, err := h.receiver.Receive(c.Writer, c.Request, limit, formats...)
		if err != nil {
			h.fail(c, nil, err)
			return
		}
		defer func() {
			if err := upload.Remove(); err != nil {
				h.logger.Error().Err(err).Str("path", upload.Path).Msg("failed to remove upload")
			}
		}()

		f, err := upload.Open()
		if err != nil {
			h.fail(c, nil, err)
			return
		}
		defer f.Close()

		meta := importer.RunMeta{Source: upload.Filename}
		if doctor, ok := middleware.CurrentDoctor(c); ok {
			meta.Actor = doctor.EmployeeNumber
		}
		job := importer.Job{
			Entity:  entity,
			Format:  upload.Format,
			Charset: c.Query("charset"),
			Body:    f,
			Size:    upload.Size,
			Path:    upload.Fields["path"],
			Meta:    meta,
		}

		summary, err := h.svc.Run(c.Request.Context(), job)
		if err != nil {
			if summary != nil {
				h.svc.AnnounceAsync(context.WithoutCancel(c.Request.Context()), job, failed(summary, err))
			}
			h.fail(c, summary, err)
			return
		}
		h.svc.AnnounceAsync(context.WithoutCancel(c.Request.Context()), job, *summary)

		h.logger.Info().
			Str("run_id", summary.RunID).
			Str("entity", entity).
			Str("file", upload.Filename).
			Int("total", summary.Total).
			Int("processed", summary.Processed).
			Int("errors", summary.Errors).
			Msg("import finished")
		c.JSON(http.StatusOK, summary)
	}
}

// fail answers with the summary so far. Server-side failures only carry a
// generic message; the detail goes to the log.
func (h *Handler) fail(c *gin.Context, summary *model.ImportSummary, err error) {
	status := statusFor(err)
	resp := failed(summary, err)

	if status >= http.StatusInternalServerError {
		h.logger.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.ContextRequestID)).
			Str("run_id", resp.RunID).
			Msg("import failed")
		resp.Message = "Internal server error"
	}
	c.AbortWithStatusJSON(status, resp)
}

// failed returns a copy of summary marked as failed by err.
func failed(summary *model.ImportSummary, err error) model.ImportSummary {
	var out model.ImportSummary
	if summary != nil {
		out = *summary
	}
	out.Status = model.ImportStatusError
	out.Message = err.Error()
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, importer.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, importer.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, importer.ErrUnknownEntity):
		return http.StatusNotFound
	case importer.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}
