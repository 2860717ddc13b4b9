package paint

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/api/paint-products", h.listProducts)
	app.Post("/api/paint-products", h.createProduct)
	app.Get("/api/paint-products/:id", h.getProduct)
	app.Put("/api/paint-products/:id", h.updateProduct)
	app.Delete("/api/paint-products/:id", h.deleteProduct)
}

func (h *Handler) listProducts(c *fiber.Ctx) error {
	products, err := h.service.List(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(products)
}

func (h *Handler) getProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return writeError(c, err)
	}
	p, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(p)
}

func (h *Handler) createProduct(c *fiber.Ctx) error {
	p := new(Product)
	if err := c.BodyParser(p); err != nil {
		return writeError(c, fmt.Errorf("%w: %v", ErrMalformed, err))
	}

	created, err := h.service.Create(c.UserContext(), detachProduct(*p))
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *Handler) updateProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return writeError(c, err)
	}
	// an unknown id is reported as such whatever the body holds
	if _, err := h.service.Get(c.UserContext(), id); err != nil {
		return writeError(c, err)
	}

	patch := new(Patch)
	if err := c.BodyParser(patch); err != nil {
		return writeError(c, fmt.Errorf("%w: %v", ErrMalformed, err))
	}

	updated, err := h.service.Update(c.UserContext(), id, detachPatch(*patch))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(updated)
}

func (h *Handler) deleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusNoContent).Send(nil)
}

// detachProduct copies parsed strings out of the request buffer, which
// fasthttp reuses once the handler returns while sync tasks still hold p.
func detachProduct(p Product) Product {
	p.Brand = utils.CopyString(p.Brand)
	p.Paint = utils.CopyString(p.Paint)
	p.Finishes = utils.CopyString(p.Finishes)
	p.PrimerNote = utils.CopyString(p.PrimerNote)
	return p
}

func detachPatch(pt Patch) Patch {
	for _, f := range []**string{&pt.Brand, &pt.Paint, &pt.Finishes, &pt.PrimerNote} {
		if *f != nil {
			v := utils.CopyString(**f)
			*f = &v
		}
	}
	return pt
}

func parseID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid product id %q", ErrMalformed, c.Params("id"))
	}
	return id, nil
}

func writeError(c *fiber.Ctx, err error) error {
	var ve *ValidationError
	switch {
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Product not found"})
	case errors.Is(err, ErrMalformed):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": ve.Error(), "fields": ve.Fields})
	default:
		log.WithError(err).WithField("path", c.Path()).Error("product store failure")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
