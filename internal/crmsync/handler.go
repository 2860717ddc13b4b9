package crmsync

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/wichananm65/paint-sync/internal/auth"
	"github.com/wichananm65/paint-sync/internal/bitrix"
)

const (
	EventItemUpdate = "ONCRMDYNAMICITEMUPDATE"
	EventItemDelete = "ONCRMDYNAMICITEMDELETE"
)

const (
	msgNotConfigured = "Bitrix integration not configured"
	msgUnreachable   = "Failed to reach Bitrix"
)

type Handler struct {
	dispatcher   *Dispatcher
	remote       Remote
	entityTypeID int
	webhooks     bool
	protect      []fiber.Handler
}

// HandlerConfig holds the route options. Protect runs in front of the
// manual sync endpoint.
type HandlerConfig struct {
	EntityTypeID    int
	WebhooksEnabled bool
	Protect         []fiber.Handler
}

func NewHandler(d *Dispatcher, cfg HandlerConfig) *Handler {
	return &Handler{
		dispatcher:   d,
		remote:       d.remote,
		entityTypeID: cfg.EntityTypeID,
		webhooks:     cfg.WebhooksEnabled,
		protect:      cfg.Protect,
	}
}

func (h *Handler) RegisterRoutes(app fiber.Router) {
	if h.webhooks {
		app.Post("/api/bitrix/webhook", h.webhook)
	}
	chain := append(append([]fiber.Handler{}, h.protect...), h.syncAll)
	app.Post("/api/bitrix/sync", chain...)
	app.Get("/api/bitrix/items/list", h.listItems)
	app.Get("/api/bitrix/types/list", h.listTypes)
	app.Get("/api/bitrix/status", h.status)
}

type webhookFields struct {
	ID           flexInt `json:"ID"`
	EntityTypeID flexInt `json:"ENTITY_TYPE_ID"`
}

type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Fields webhookFields `json:"FIELDS"`
	} `json:"data"`
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}

// parseWebhook reads a JSON envelope, or the form encoding the CRM uses for
// outbound webhooks (event=...&data[FIELDS][ID]=...).
func parseWebhook(c *fiber.Ctx) (webhookEvent, error) {
	var ev webhookEvent
	body := c.Body()
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEApplicationForm) {
		ev.Event = c.FormValue("event")
		for key, dst := range map[string]*flexInt{
			"data[FIELDS][ID]":             &ev.Data.Fields.ID,
			"data[FIELDS][ENTITY_TYPE_ID]": &ev.Data.Fields.EntityTypeID,
		} {
			if v := c.FormValue(key); v != "" {
				if err := dst.UnmarshalJSON([]byte(v)); err != nil {
					return ev, err
				}
			}
		}
		if ev.Event == "" {
			return ev, errors.New("missing event")
		}
		return ev, nil
	}
	if err := json.Unmarshal(body, &ev); err != nil {
		return ev, err
	}
	return ev, nil
}

func (h *Handler) webhook(c *fiber.Ctx) error {
	if !h.dispatcher.Configured() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msgNotConfigured})
	}
	ev, err := parseWebhook(c)
	if err != nil {
		log.WithError(err).Error("bitrix webhook: unparsable payload")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Webhook processing failed"})
	}

	logger := log.WithFields(log.Fields{
		"event":          ev.Event,
		"bitrix_id":      int64(ev.Data.Fields.ID),
		"entity_type_id": int64(ev.Data.Fields.EntityTypeID),
	})
	if ev.Data.Fields.EntityTypeID != 0 && int(ev.Data.Fields.EntityTypeID) != h.entityTypeID {
		logger.Debug("bitrix webhook for another entity type ignored")
		return c.JSON(fiber.Map{"success": true})
	}

	switch strings.ToUpper(ev.Event) {
	case EventItemUpdate:
		logger.Info("bitrix item updated remotely")
	case EventItemDelete:
		unlinked, err := h.dispatcher.Unlink(c.UserContext(), int64(ev.Data.Fields.ID))
		if err != nil {
			logger.WithError(err).Error("bitrix webhook: unlink failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Webhook processing failed"})
		}
		logger.WithField("unlinked", unlinked).Info("bitrix item deleted remotely")
	default:
		logger.Info("bitrix webhook event acknowledged")
	}
	return c.JSON(fiber.Map{"success": true})
}

func (h *Handler) syncAll(c *fiber.Ctx) error {
	result, err := h.dispatcher.SyncAll(c.UserContext())
	if errors.Is(err, bitrix.ErrNotConfigured) {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msgNotConfigured})
	}
	if err != nil {
		log.WithError(err).Error("bitrix sync: could not load products")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Sync failed"})
	}
	log.WithFields(log.Fields{
		"operator":   auth.Subject(c),
		"successful": result.Successful,
		"failed":     result.Failed,
	}).Info("manual bitrix sync finished")
	return c.JSON(result)
}

func (h *Handler) listItems(c *fiber.Ctx) error {
	if h.remote == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msgNotConfigured})
	}
	res, err := h.remote.ListItems(c.UserContext(), c.Query("start"), c.Query("limit"))
	return passThrough(c, res, err)
}

func (h *Handler) listTypes(c *fiber.Ctx) error {
	if h.remote == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": msgNotConfigured})
	}
	res, err := h.remote.ListTypes(c.UserContext())
	return passThrough(c, res, err)
}

func passThrough(c *fiber.Ctx, res bitrix.RawResponse, err error) error {
	if err != nil {
		log.WithError(err).Error("bitrix proxy call failed")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": msgUnreachable})
	}
	contentType := res.ContentType
	if contentType == "" {
		contentType = fiber.MIMEApplicationJSON
	}
	c.Set(fiber.HeaderContentType, contentType)
	return c.Status(res.Status).Send(res.Body)
}

func (h *Handler) status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"configured":      h.dispatcher.Configured(),
		"autoSync":        h.dispatcher.AutoSync(),
		"webhooksEnabled": h.webhooks,
		"entityTypeId":    h.entityTypeID,
		"queue":           h.dispatcher.QueueStats(),
	})
}
