package v1

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/feeds"
	"github.com/labstack/echo/v4"

	svcerrors "github.com/hrygo/ordernotes/server/internal/errors"
	"github.com/hrygo/ordernotes/server/service/ordernote"
	"github.com/hrygo/ordernotes/store"
)

const maxFeedItems = 50

// GetOrderNoteFeed serves the human-written notes of an order as RSS.
// GET /api/v1/orders/:id/notes/feed
func (s *APIV1Service) GetOrderNoteFeed(c echo.Context) error {
	orderID, err := parseID(c.Param("id"), "order id")
	if err != nil {
		return err
	}
	notes, err := s.NoteService.ListNotes(c.Request().Context(), orderID, maxFeedItems, ordernote.FilterModeFiltered, false)
	if err != nil {
		return err
	}

	rss, err := s.generateRSSFromNotes(c, orderID, notes)
	if err != nil {
		return svcerrors.StoreError("failed to generate rss", err)
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/rss+xml; charset=utf-8")
	return c.String(http.StatusOK, rss)
}

func (s *APIV1Service) generateRSSFromNotes(c echo.Context, orderID int32, notes []*store.OrderNote) (string, error) {
	baseURL := c.Scheme() + "://" + c.Request().Host
	link := fmt.Sprintf("%s/api/v1/orders/%d/notes", baseURL, orderID)

	feed := &feeds.Feed{
		Title:       fmt.Sprintf("Order #%d notes", orderID),
		Link:        &feeds.Link{Href: link},
		Description: fmt.Sprintf("Notes written on order #%d", orderID),
		Items:       make([]*feeds.Item, 0, len(notes)),
	}
	if len(notes) > 0 {
		feed.Created = time.Unix(notes[0].CreatedTs, 0)
	}

	for _, note := range notes {
		converted := s.convertOrderNote(note)
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          note.UID,
			Title:       fmt.Sprintf("%s note, %s", converted.Author, converted.Date),
			Link:        &feeds.Link{Href: fmt.Sprintf("%s#note-%d", link, note.ID)},
			Description: converted.Content,
			Content:     converted.ContentHTML,
			Created:     time.Unix(note.CreatedTs, 0),
		})
	}
	return feed.ToRss()
}
