package estimates

import (
	"bytes"
	"encoding/json"

	estsvc "estimate-backend/internal/application/estimation"
	"estimate-backend/internal/domain"
	"estimate-backend/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Handlers exposes the estimation service over HTTP. Service errors are
// returned as-is and mapped by the global error handler.
type Handlers struct {
	Service *estsvc.Service
}

type nameBody struct {
	Name string `json:"name"`
}

type ratesBody struct {
	OverheadRate *decimal.Decimal `json:"overhead_rate"`
	TaxRate      *decimal.Decimal `json:"tax_rate"`
}

type rateBody struct {
	Rate *decimal.Decimal `json:"rate"`
}

func paramID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, domain.Validation("id", "malformed id")
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return nil
}

// parseChanges decodes a PATCH body keeping numbers exact.
func parseChanges(c *fiber.Ctx) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(c.Body()))
	dec.UseNumber()
	var changes map[string]interface{}
	if err := dec.Decode(&changes); err != nil || changes == nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	return changes, nil
}

// POST /api/v1/projects
func (h *Handlers) CreateProject(c *fiber.Ctx) error {
	var in estsvc.ProjectInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	tree, err := h.Service.CreateProject(c.UserContext(), in)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Project created successfully", tree, nil)
}

// POST /api/v1/projects/import
func (h *Handlers) ImportProject(c *fiber.Ctx) error {
	var tree domain.ProjectTree
	if err := parseBody(c, &tree); err != nil {
		return err
	}
	id, result, err := h.Service.ImportProject(c.UserContext(), &tree)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Project imported successfully", fiber.Map{
		"project_id": id,
		"summary":    tree.Summary,
		"warnings":   result.Warnings,
	}, nil)
}

// GET /api/v1/projects/:id
func (h *Handlers) GetProject(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	tree, err := h.Service.Snapshot(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Project fetched successfully", tree, nil)
}

// POST /api/v1/projects/:id/recompute
func (h *Handlers) RecomputeProject(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	tree, result, err := h.Service.RecomputeProject(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Project recomputed successfully", tree, fiber.Map{"warnings": result.Warnings})
}

// PATCH /api/v1/projects/:id/rates
func (h *Handlers) UpdateRates(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var body ratesBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	res, err := h.Service.UpdateProjectRates(c.UserContext(), id, body.OverheadRate, body.TaxRate)
	if err != nil {
		return err
	}
	return response.Success(c, "Project rates updated successfully", res, nil)
}

// POST /api/v1/projects/:id/parts
func (h *Handlers) AddPart(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var body nameBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	res, err := h.Service.AddPart(c.UserContext(), id, body.Name)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Part created successfully", res, nil)
}

// PATCH /api/v1/parts/:id
func (h *Handlers) RenamePart(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var body nameBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	res, err := h.Service.RenamePart(c.UserContext(), id, body.Name)
	if err != nil {
		return err
	}
	return response.Success(c, "Part renamed successfully", res, nil)
}

// DELETE /api/v1/parts/:id
func (h *Handlers) DeletePart(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	res, err := h.Service.DeletePart(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Part deleted successfully", res, nil)
}

// POST /api/v1/parts/:id/items
func (h *Handlers) AddItem(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var in estsvc.ItemInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := h.Service.AddAbstractItem(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Abstract item created successfully", res, nil)
}

// PATCH /api/v1/items/:id/rate
func (h *Handlers) EditRate(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var body rateBody
	if err := parseBody(c, &body); err != nil {
		return err
	}
	if body.Rate == nil {
		return domain.Validation("rate", "rate is required")
	}
	res, err := h.Service.ApplyRateEdit(c.UserContext(), id, *body.Rate)
	if err != nil {
		return err
	}
	return response.Success(c, "Rate updated successfully", res, nil)
}

// PATCH /api/v1/items/:id
func (h *Handlers) EditItem(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	changes, err := parseChanges(c)
	if err != nil {
		return err
	}
	res, err := h.Service.ApplyItemEdit(c.UserContext(), id, changes)
	if err != nil {
		return err
	}
	return response.Success(c, "Abstract item updated successfully", res, nil)
}

// DELETE /api/v1/items/:id
func (h *Handlers) DeleteItem(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	res, err := h.Service.DeleteAbstractItem(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Abstract item deleted successfully", res, nil)
}

// POST /api/v1/parts/:id/lines
func (h *Handlers) AddLine(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	var in estsvc.LineInput
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := h.Service.AddMeasurementLine(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	return response.SuccessCreated(c, "Measurement line created successfully", res, nil)
}

// PATCH /api/v1/lines/:id
func (h *Handlers) EditLine(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	changes, err := parseChanges(c)
	if err != nil {
		return err
	}
	res, err := h.Service.ApplyMeasurementEdit(c.UserContext(), id, changes)
	if err != nil {
		return err
	}
	return response.Success(c, "Measurement line updated successfully", res, nil)
}

// DELETE /api/v1/lines/:id
func (h *Handlers) DeleteLine(c *fiber.Ctx) error {
	id, err := paramID(c)
	if err != nil {
		return err
	}
	res, err := h.Service.DeleteMeasurementLine(c.UserContext(), id)
	if err != nil {
		return err
	}
	return response.Success(c, "Measurement line deleted successfully", res, nil)
}

// Register mounts the estimate routes on r.
func (h *Handlers) Register(r fiber.Router) {
	r.Post("/projects", h.CreateProject)
	r.Post("/projects/import", h.ImportProject)
	r.Get("/projects/:id", h.GetProject)
	r.Post("/projects/:id/recompute", h.RecomputeProject)
	r.Patch("/projects/:id/rates", h.UpdateRates)
	r.Post("/projects/:id/parts", h.AddPart)
	r.Patch("/parts/:id", h.RenamePart)
	r.Delete("/parts/:id", h.DeletePart)
	r.Post("/parts/:id/items", h.AddItem)
	r.Patch("/items/:id/rate", h.EditRate)
	r.Patch("/items/:id", h.EditItem)
	r.Delete("/items/:id", h.DeleteItem)
	r.Post("/parts/:id/lines", h.AddLine)
	r.Patch("/lines/:id", h.EditLine)
	r.Delete("/lines/:id", h.DeleteLine)
}
