package resource

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/radiology-api/internal/model"
	"github.com/jwalitptl/radiology-api/internal/service/listing"
	apperrors "github.com/jwalitptl/radiology-api/pkg/errors"
	"github.com/jwalitptl/radiology-api/pkg/httputil"
)

// Handler serves the read side of one entity: paginated listing, lookup by
// id and full exports.
type Handler[T any] struct {
	svc      *listing.Service[T]
	plural   string
	singular string
}

func NewHandler[T any](svc *listing.Service[T], plural, singular string) *Handler[T] {
	return &Handler[T]{svc: svc, plural: plural, singular: singular}
}

func (h *Handler[T]) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.List)
	r.GET("/:id", h.Get)
	r.GET("/export/json", h.ExportJSON)
	r.GET("/export/xml", h.ExportXML)
}

func (h *Handler[T]) List(c *gin.Context) {
	var q model.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid pagination parameters", err))
		return
	}

	page, err := h.svc.List(c.Request.Context(), q)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *Handler[T]) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid id", err))
		return
	}

	item, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, item)
}

// ExportJSON streams the table as one JSON array.
func (h *Handler[T]) ExportJSON(c *gin.Context) {
	h.attachment(c, "application/json; charset=utf-8", "json")
	w := c.Writer
	enc := json.NewEncoder(w)

	first := true
	_, _ = w.WriteString("[")
	err := h.svc.Export(c.Request.Context(), func(item T) error {
		if !first {
			if _, err := w.WriteString(","); err != nil {
				return err
			}
		}
		first = false
		return enc.Encode(item)
	})
	if err != nil {
		h.abortStream(c, err)
		return
	}
	_, _ = w.WriteString("]\n")
}

// ExportXML streams <root><plural><singular>...</singular></plural></root>,
// the same layout the XML importer reads.
func (h *Handler[T]) ExportXML(c *gin.Context) {
	h.attachment(c, "application/xml; charset=utf-8", "xml")
	_, _ = c.Writer.WriteString(xml.Header)
	enc := xml.NewEncoder(c.Writer)
	enc.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "root"}}
	collection := xml.StartElement{Name: xml.Name{Local: h.plural}}
	element := xml.StartElement{Name: xml.Name{Local: h.singular}}

	if err := enc.EncodeToken(root); err != nil {
		h.abortStream(c, err)
		return
	}
	if err := enc.EncodeToken(collection); err != nil {
		h.abortStream(c, err)
		return
	}
	err := h.svc.Export(c.Request.Context(), func(item T) error {
		return enc.EncodeElement(item, element)
	})
	if err != nil {
		h.abortStream(c, err)
		return
	}
	if err := enc.EncodeToken(collection.End()); err != nil {
		h.abortStream(c, err)
		return
	}
	if err := enc.EncodeToken(root.End()); err != nil {
		h.abortStream(c, err)
		return
	}
	if err := enc.Flush(); err != nil {
		h.abortStream(c, err)
	}
}

func (h *Handler[T]) attachment(c *gin.Context, contentType, ext string) {
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, h.plural, ext))
	c.Status(http.StatusOK)
}

// abortStream logs a failure after the status line has been sent. The
// client sees a truncated document.
func (h *Handler[T]) abortStream(c *gin.Context, err error) {
	log.Ctx(c.Request.Context()).Error().
		Err(err).
		Str("resource", h.plural).
		Msg("export interrupted")
	c.Abort()
}
