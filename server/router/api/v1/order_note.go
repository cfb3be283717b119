package v1

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/ordernotes/server/auth"
	svcerrors "github.com/hrygo/ordernotes/server/internal/errors"
	"github.com/hrygo/ordernotes/server/service/ordernote"
	"github.com/hrygo/ordernotes/store"
)

const (
	authorCustomer = "Customer"
	authorAdmin    = "Admin"
	typeCustomer   = "customer"
	typeAdmin      = "admin"
)

// OrderNote is the API representation of a note.
type OrderNote struct {
	ID           int32  `json:"id"`
	UID          string `json:"uid"`
	OrderID      int32  `json:"order_id"`
	Content      string `json:"content"`
	ContentHTML  string `json:"content_html"`
	Excerpt      string `json:"excerpt,omitempty"`
	Author       string `json:"author"`
	AddedBy      string `json:"added_by,omitempty"`
	Type         string `json:"type"`
	Date         string `json:"date"`
	DateRelative string `json:"date_relative"`
	CreatedTs    int64  `json:"created_ts"`
}

type ListOrderNotesResponse struct {
	OrderID int32        `json:"order_id"`
	Filter  string       `json:"filter"`
	Notes   []*OrderNote `json:"notes"`
}

type CreateOrderNoteRequest struct {
	Content        string `json:"content"`
	IsCustomerNote bool   `json:"is_customer_note"`
}

type ListOrderNotePreviewsResponse struct {
	// Previews maps order id to its newest human-written note, null when there is none.
	Previews map[string]*OrderNote `json:"previews"`
}

// ListOrderNotes returns the notes of an order.
// GET /api/v1/orders/:id/notes?limit=10&filter=filtered|all&nocache=1
func (s *APIV1Service) ListOrderNotes(c echo.Context) error {
	orderID, err := parseID(c.Param("id"), "order id")
	if err != nil {
		return err
	}
	limit := ordernote.DefaultListLimit
	if v := c.QueryParam("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil {
			return svcerrors.InvalidArgument("invalid limit %q", v)
		}
	}
	mode, err := ordernote.ParseFilterMode(c.QueryParam("filter"))
	if err != nil {
		return err
	}
	fresh := isTruthy(c.QueryParam("nocache"))

	notes, err := s.NoteService.ListNotes(c.Request().Context(), orderID, limit, mode, fresh)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &ListOrderNotesResponse{
		OrderID: orderID,
		Filter:  mode.String(),
		Notes:   s.convertOrderNotes(notes),
	})
}

// CreateOrderNote adds a note to an order.
// POST /api/v1/orders/:id/notes
func (s *APIV1Service) CreateOrderNote(c echo.Context) error {
	orderID, err := parseID(c.Param("id"), "order id")
	if err != nil {
		return err
	}
	request := &CreateOrderNoteRequest{}
	if err := c.Bind(request); err != nil {
		return svcerrors.InvalidArgument("invalid request body")
	}

	create := &store.OrderNote{
		OrderID:        orderID,
		Content:        request.Content,
		IsCustomerNote: request.IsCustomerNote,
	}
	if claims, ok := auth.ClaimsFromContext(c.Request().Context()); ok && !request.IsCustomerNote {
		create.AddedBy = claims.Name
	}

	note, err := s.NoteService.AddNote(c.Request().Context(), create)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, s.convertOrderNote(note))
}

// DeleteOrderNote removes a note from an order.
// DELETE /api/v1/orders/:id/notes/:noteId
func (s *APIV1Service) DeleteOrderNote(c echo.Context) error {
	orderID, err := parseID(c.Param("id"), "order id")
	if err != nil {
		return err
	}
	noteID, err := parseID(c.Param("noteId"), "note id")
	if err != nil {
		return err
	}
	if err := s.NoteService.DeleteNote(c.Request().Context(), orderID, noteID); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListOrderNotePreviews returns the newest human-written note of several orders.
// GET /api/v1/orders/previews?ids=1,2,3
func (s *APIV1Service) ListOrderNotePreviews(c echo.Context) error {
	raw := c.QueryParam("ids")
	if strings.TrimSpace(raw) == "" {
		return svcerrors.InvalidArgument("ids is required")
	}

	var ids []int32
	seen := make(map[int32]bool)
	for _, part := range strings.Split(raw, ",") {
		id, err := parseID(strings.TrimSpace(part), "order id")
		if err != nil {
			return err
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	previews, err := s.NoteService.Previews(c.Request().Context(), ids)
	if err != nil {
		return err
	}
	response := &ListOrderNotePreviewsResponse{Previews: make(map[string]*OrderNote, len(previews))}
	for id, note := range previews {
		var converted *OrderNote
		if note != nil {
			converted = s.convertOrderNote(note)
			converted.Excerpt = ordernote.Excerpt(note.Content, ordernote.DefaultExcerptRunes)
		}
		response.Previews[strconv.Itoa(int(id))] = converted
	}
	return c.JSON(http.StatusOK, response)
}

func (s *APIV1Service) convertOrderNotes(notes []*store.OrderNote) []*OrderNote {
	result := make([]*OrderNote, 0, len(notes))
	for _, note := range notes {
		result = append(result, s.convertOrderNote(note))
	}
	return result
}

func (s *APIV1Service) convertOrderNote(note *store.OrderNote) *OrderNote {
	result := &OrderNote{
		ID:           note.ID,
		UID:          note.UID,
		OrderID:      note.OrderID,
		Content:      note.Content,
		ContentHTML:  s.renderContent(note.Content),
		Author:       authorAdmin,
		AddedBy:      note.AddedBy,
		Type:         typeAdmin,
		Date:         s.Formatter.Format(note.CreatedTs),
		DateRelative: s.Formatter.Relative(note.CreatedTs),
		CreatedTs:    note.CreatedTs,
	}
	if note.IsCustomerNote {
		result.Author = authorCustomer
		result.Type = typeCustomer
	}
	return result
}

// renderContent renders note markdown. Raw HTML in notes is omitted.
func (s *APIV1Service) renderContent(content string) string {
	var buf bytes.Buffer
	if err := s.markdown.Convert([]byte(content), &buf); err != nil {
		return ""
	}
	return buf.String()
}

func parseID(raw, name string) (int32, error) {
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, svcerrors.InvalidArgument("invalid %s %q", name, raw)
	}
	return int32(id), nil
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
