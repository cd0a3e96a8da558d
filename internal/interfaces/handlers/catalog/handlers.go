package catalog

import (
	"strconv"
	"strings"

	catalogsvc "estimate-backend/internal/application/catalog"
	"estimate-backend/internal/domain"
	"estimate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type Handlers struct {
	Service *catalogsvc.Service
}

type importBody struct {
	Path string `json:"path"`
}

// GET /api/v1/catalog/search?q=&threshold=
// data is the merged ranking; metadata carries the per-source sublists.
func (h *Handlers) Search(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return domain.Validation("q", "query text is required")
	}
	var threshold *float64
	if raw := c.Query("threshold"); raw != "" {
		t, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return domain.Validation("threshold", "malformed number")
		}
		threshold = &t
	}
	res, err := h.Service.SearchAll(c.UserContext(), q, threshold)
	if err != nil {
		return err
	}
	return response.Success(c, "Catalog searched successfully", catalogsvc.Merge(res), fiber.Map{
		"query":      res.Query,
		"threshold":  res.Threshold,
		"sources":    res.Sources,
		"best_match": res.BestMatch,
	})
}

// GET /api/v1/catalog/sources
func (h *Handlers) Sources(c *fiber.Ctx) error {
	return response.Success(c, "Catalog sources fetched successfully", h.Service.Status(), nil)
}

// POST /api/v1/catalog/refresh
func (h *Handlers) Refresh(c *fiber.Ctx) error {
	return response.Success(c, "Catalogs refreshed successfully", h.Service.Refresh(c.UserContext()), nil)
}

// POST /api/v1/catalog/import
func (h *Handlers) Import(c *fiber.Ctx) error {
	var body importBody
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if strings.TrimSpace(body.Path) == "" {
		return domain.Validation("path", "catalog file path is required")
	}
	source, rows, err := h.Service.Import(c.UserContext(), body.Path)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Catalog imported successfully", fiber.Map{
		"source": source,
		"rows":   rows,
	}, fiber.Map{"catalogs": h.Service.Status()})
}
