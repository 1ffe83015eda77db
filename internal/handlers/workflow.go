package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/mdmstudio/sns-backend/internal/services"
)

// WorkflowHandler exposes workflow orchestration over REST.
type WorkflowHandler struct {
	workflows *services.WorkflowService
}

func NewWorkflowHandler(workflows *services.WorkflowService) *WorkflowHandler {
	return &WorkflowHandler{workflows: workflows}
}

// Create accepts a workflow definition and persists it with its delivery
// records.
func (h *WorkflowHandler) Create(c *fiber.Ctx) error {
	var req services.CreateWorkflowRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	workflowID, err := h.workflows.Create(req)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":     true,
		"message":     "workflow created successfully",
		"workflow_id": workflowID,
	})
}

// History lists all workflows, most recently scheduled first.
func (h *WorkflowHandler) History(c *fiber.Ctx) error {
	workflows, err := h.workflows.History()
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":   true,
		"workflows": workflows,
	})
}

// Update applies a partial patch to an unpublished workflow.
func (h *WorkflowHandler) Update(c *fiber.Ctx) error {
	var patch services.WorkflowPatch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request body",
		})
	}

	workflow, err := h.workflows.Update(c.Params("id"), patch)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":  true,
		"message":  "Workflow updated successfully",
		"workflow": workflow,
	})
}

// Delete removes a workflow and its delivery records.
func (h *WorkflowHandler) Delete(c *fiber.Ctx) error {
	workflowID := c.Params("id")
	if err := h.workflows.Delete(workflowID); err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":     true,
		"message":     "workflow deleted successfully",
		"workflow_id": workflowID,
	})
}

// Acks returns per-device acknowledgment state for a workflow.
func (h *WorkflowHandler) Acks(c *fiber.Ctx) error {
	acks, err := h.workflows.Acks(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"acks":    acks,
	})
}
