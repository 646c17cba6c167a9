package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/pageza/chopchop/backend/internal/middleware"
	"github.com/pageza/chopchop/backend/internal/models"
	"github.com/pageza/chopchop/backend/internal/service"
)

// KitchenView is the state of a workspace as shown to the client
type KitchenView struct {
	Pantry  []models.PantryItem  `json:"pantry"`
	Grocery []models.GroceryItem `json:"grocery"`
	Recipes []models.Recipe      `json:"recipes"`
	Tab     service.Tab          `json:"tab"`
	State   service.ChatState    `json:"state"`
}

// MessageRequest is a chat message with an optional data URL image
type MessageRequest struct {
	Message string `json:"message" validate:"max=4000"`
	Image   string `json:"image" validate:"omitempty,startswith=data:image/"`
}

// PantryItemRequest adds a pantry item by hand
type PantryItemRequest struct {
	Name      string           `json:"name" validate:"required,max=120"`
	Quantity  string           `json:"quantity" validate:"max=64"`
	Category  string           `json:"category" validate:"max=64"`
	Freshness models.Freshness `json:"freshness" validate:"omitempty,oneof=fresh good needs_use_soon expired"`
}

// GroceryItemRequest adds a grocery item by hand
type GroceryItemRequest struct {
	Item     string `json:"item" validate:"required,max=120"`
	Category string `json:"category" validate:"max=64"`
}

// TabRequest switches the active view
type TabRequest struct {
	Tab service.Tab `json:"tab" validate:"required,oneof=chat pantry grocery recipes"`
}

// EmailRequest sends the grocery list. Email defaults to the signed-in user.
type EmailRequest struct {
	Email string `json:"email" validate:"omitempty,email"`
}

// KitchenHandler serves the workspace of the signed-in user
type KitchenHandler struct {
	workspaces *service.WorkspaceRegistry
	email      service.IEmailService
	maxUpload  int64
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewKitchenHandler creates a new KitchenHandler
func NewKitchenHandler(workspaces *service.WorkspaceRegistry, email service.IEmailService, maxUpload int64, logger *zap.Logger) *KitchenHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KitchenHandler{
		workspaces: workspaces,
		email:      email,
		maxUpload:  maxUpload,
		validate:   validator.New(),
		logger:     logger,
	}
}

// RegisterRoutes registers the kitchen routes. limit is applied to routes
// that call the AI backend.
func (h *KitchenHandler) RegisterRoutes(router *gin.RouterGroup, limit ...gin.HandlerFunc) {
	kitchen := router.Group("/kitchen")
	{
		kitchen.GET("", h.GetKitchen)
		kitchen.GET("/messages", h.GetMessages)
		kitchen.POST("/messages", chain(limit, h.SendMessage)...)
		kitchen.DELETE("/messages", h.ClearMessages)
		kitchen.POST("/fridge-photo", chain(limit, h.UploadFridgePhoto)...)
		kitchen.POST("/recipes/generate", chain(limit, h.GenerateRecipes)...)

		kitchen.POST("/pantry", h.AddPantryItem)
		kitchen.PATCH("/pantry/:index", h.UpdatePantryItem)
		kitchen.DELETE("/pantry/:index", h.RemovePantryItem)

		kitchen.POST("/grocery", h.AddGroceryItem)
		kitchen.PATCH("/grocery/:index", h.UpdateGroceryItem)
		kitchen.DELETE("/grocery/:index", h.RemoveGroceryItem)
		kitchen.POST("/grocery/:index/toggle", h.ToggleGroceryItem)

		kitchen.PUT("/tab", h.SetTab)
		kitchen.POST("/email", h.SendGroceryEmail)
	}
}

func (h *KitchenHandler) workspace(c *gin.Context) (*service.Workspace, bool) {
	ws, err := h.workspaces.Open(c.Request.Context(), c.GetString(middleware.ContextEmail))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return ws, true
}

// bind decodes and validates a JSON body
func (h *KitchenHandler) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationMessage(err)})
		return false
	}
	return true
}

func validationMessage(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "max":
		return fe.Field() + " is too long"
	}
	return fe.Field() + " is invalid"
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item index"})
		return 0, false
	}
	return index, true
}

func view(ws *service.Workspace) KitchenView {
	snap := ws.Kitchen.Snapshot()
	return KitchenView{
		Pantry:  nonNil(snap.Pantry),
		Grocery: nonNil(snap.Grocery),
		Recipes: nonNil(snap.Recipes),
		Tab:     ws.Kitchen.Tab(),
		State:   ws.Chat.State(),
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// GetKitchen handles GET /api/v1/kitchen
func (h *KitchenHandler) GetKitchen(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, view(ws))
}

// GetMessages handles GET /api/v1/kitchen/messages
func (h *KitchenHandler) GetMessages(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": ws.Chat.Messages(), "state": ws.Chat.State()})
}

// ClearMessages handles DELETE /api/v1/kitchen/messages
func (h *KitchenHandler) ClearMessages(c *gin.Context) {
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := ws.Chat.ClearHistory(c.Request.Context()); err != nil {
		h.logger.Error("failed to clear chat history", zap.String("email", ws.Email), zap.Error(err))
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SendMessage handles POST /api/v1/kitchen/messages
func (h *KitchenHandler) SendMessage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, proxyBodyLimit(h.maxUpload))
	var req MessageRequest
	if !h.bind(c, &req) {
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	var image *service.EncodedImage
	if req.Image != "" {
		contentType, data, err := service.ParseDataURL(req.Image)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image"})
			return
		}
		image = &service.EncodedImage{ContentType: contentType, Data: data}
	}

	result, err := ws.Chat.SendMessage(c.Request.Context(), req.Message, image)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "kitchen": view(ws)})
}

// UploadFridgePhoto handles POST /api/v1/kitchen/fridge-photo
func (h *KitchenHandler) UploadFridgePhoto(c *gin.Context) {
	header, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Image is required"})
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	photo := service.Photo{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
	}
	// oversized files are rejected by the processor without being read
	if header.Size <= h.maxUpload {
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
			return
		}
		defer file.Close()
		if photo.Data, err = io.ReadAll(io.LimitReader(file, h.maxUpload+1)); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read image"})
			return
		}
	}

	result, err := ws.Chat.UploadFridgePhoto(c.Request.Context(), photo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "kitchen": view(ws)})
}

// GenerateRecipes handles POST /api/v1/kitchen/recipes/generate
func (h *KitchenHandler) GenerateRecipes(c *gin.Context) {
	var req service.RecipeRequest
	if !h.bind(c, &req) {
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	result, err := ws.Chat.GenerateRecipes(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "kitchen": view(ws)})
}

// AddPantryItem handles POST /api/v1/kitchen/pantry
func (h *KitchenHandler) AddPantryItem(c *gin.Context) {
	var req PantryItemRequest
	if !h.bind(c, &req) {
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	item, err := ws.Kitchen.AddPantryItem(models.PantryItem{
		Name:      req.Name,
		Quantity:  req.Quantity,
		Category:  req.Category,
		Freshness: req.Freshness,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// UpdatePantryItem handles PATCH /api/v1/kitchen/pantry/:index
func (h *KitchenHandler) UpdatePantryItem(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var patch service.PantryItemPatch
	if !h.bind(c, &patch) {
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	item, err := ws.Kitchen.UpdatePantryItem(index, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// RemovePantryItem handles DELETE /api/v1/kitchen/pantry/:index
func (h *KitchenHandler) RemovePantryItem(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := ws.Kitchen.RemovePantryItem(index); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddGroceryItem handles POST /api/v1/kitchen/grocery
func (h *KitchenHandler) AddGroceryItem(c *gin.Context) {
	var req GroceryItemRequest
	if !h.bind(c, &req) {
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	item, err := ws.Kitchen.AddGroceryItem(req.Item, req.Category)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

// UpdateGroceryItem handles PATCH /api/v1/kitchen/grocery/:index
func (h *KitchenHandler) UpdateGroceryItem(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	var patch service.GroceryItemPatch
	if !h.bind(c, &patch) {
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	item, err := ws.Kitchen.UpdateGroceryItem(index, patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// ToggleGroceryItem handles POST /api/v1/kitchen/grocery/:index/toggle
func (h *KitchenHandler) ToggleGroceryItem(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	item, err := ws.Kitchen.ToggleGroceryItem(index)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// RemoveGroceryItem handles DELETE /api/v1/kitchen/grocery/:index
func (h *KitchenHandler) RemoveGroceryItem(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := ws.Kitchen.RemoveGroceryItem(index); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetTab handles PUT /api/v1/kitchen/tab
func (h *KitchenHandler) SetTab(c *gin.Context) {
	var req TabRequest
	if !h.bind(c, &req) {
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}
	if err := ws.Kitchen.SetTab(req.Tab); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tab": ws.Kitchen.Tab()})
}

// SendGroceryEmail handles POST /api/v1/kitchen/email
func (h *KitchenHandler) SendGroceryEmail(c *gin.Context) {
	var req EmailRequest
	if c.Request.ContentLength != 0 && !h.bind(c, &req) {
		return
	}
	ws, ok := h.workspace(c)
	if !ok {
		return
	}

	to := strings.TrimSpace(req.Email)
	if to == "" {
		to = ws.Email
	}
	snap := ws.Kitchen.Snapshot()
	if err := h.email.SendGroceryList(c.Request.Context(), to, snap.Grocery, snap.Recipes); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Email sent to " + to})
}
