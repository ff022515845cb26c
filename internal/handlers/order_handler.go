package handlers

import (
	"errors"
	"log"

	"lapak/internal/models"
	"lapak/internal/repositories"
	"lapak/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// PlaceOrderRequest is the request body for placing an order. The buyer
// is taken from the authenticated context, never from the body.
type PlaceOrderRequest struct {
	Items []models.OrderLine `json:"items" validate:"required,min=1,dive"`
}

// OrderHandler handles HTTP requests for orders.
type OrderHandler struct {
	service  *services.OrderService
	validate *validator.Validate
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(service *services.OrderService) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
	}
}

// RegisterRoutes registers the order routes with the Fiber app.
func (h *OrderHandler) RegisterRoutes(router fiber.Router) {
	orderRoutes := router.Group("/orders")
	orderRoutes.Get("/", h.HandleGetMyOrders)
	orderRoutes.Get("/:id", h.HandleGetOrderByID)
	orderRoutes.Post("/", h.HandlePlaceOrder)
}

// HandlePlaceOrder places an order for the authenticated user.
func (h *OrderHandler) HandlePlaceOrder(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Missing authenticated user",
		})
	}

	var req PlaceOrderRequest
	if err := c.BodyParser(&req); err != nil {
		log.Printf("Error parsing place order request body: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid request body",
			"error":   err.Error(),
		})
	}

	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Validation failed",
			"error":   err.Error(),
		})
	}

	order, err := h.service.PlaceOrder(c.UserContext(), userID, req.Items)
	if err != nil {
		return h.renderPlaceOrderError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

// renderPlaceOrderError maps the order placement error taxonomy onto HTTP
// statuses. Every branch below is an expected outcome except the final
// persistence failure.
func (h *OrderHandler) renderPlaceOrderError(c *fiber.Ctx, err error) error {
	var lineErr *services.LineError

	switch {
	case errors.Is(err, services.ErrEmptyOrder):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Order must contain at least one item",
		})
	case errors.As(err, &lineErr) && errors.Is(lineErr.Reason, services.ErrInvalidQuantity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message":    "Quantity must be greater than zero",
			"product_id": lineErr.ProductID,
		})
	case errors.As(err, &lineErr) && errors.Is(lineErr.Reason, services.ErrProductNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"message":    "Product not found",
			"product_id": lineErr.ProductID,
		})
	case errors.As(err, &lineErr) && errors.Is(lineErr.Reason, services.ErrInsufficientStock):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"message":    "Insufficient stock",
			"product_id": lineErr.ProductID,
		})
	default:
		log.Printf("Error placing order: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not place order",
			"error":   err.Error(),
		})
	}
}

// HandleGetMyOrders retrieves the authenticated user's order history.
func (h *OrderHandler) HandleGetMyOrders(c *fiber.Ctx) error {
	userID, ok := c.Locals("user_id").(string)
	if !ok || userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Missing authenticated user",
		})
	}

	orders, err := h.service.GetOrdersForUser(c.UserContext(), userID)
	if err != nil {
		log.Printf("Error getting orders for user %s: %v", userID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve orders",
			"error":   err.Error(),
		})
	}
	return c.JSON(orders)
}

// HandleGetOrderByID retrieves a single order by its ID.
func (h *OrderHandler) HandleGetOrderByID(c *fiber.Ctx) error {
	orderID := c.Params("id")
	order, err := h.service.GetOrderByID(c.UserContext(), orderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"message": "Order not found",
			})
		}
		log.Printf("Error getting order by ID %s: %v", orderID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Could not retrieve order",
			"error":   err.Error(),
		})
	}
	return c.JSON(order)
}
