package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"invoicegen/internal/domain/apikey"
	"invoicegen/internal/infrastructure/http/v1/dto"
)

// APIKeyHandler manages the caller's API keys.
type APIKeyHandler struct {
	*BaseHandler
	service *apikey.Service
}

// NewAPIKeyHandler creates a new API key handler.
func NewAPIKeyHandler(base *BaseHandler, service *apikey.Service) *APIKeyHandler {
	return &APIKeyHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Create handles POST /api-keys. The plaintext key is returned only here.
func (h *APIKeyHandler) Create(c *gin.Context) {
	ownerID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	var req dto.CreateAPIKeyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	issued, err := h.service.Create(c.Request.Context(), ownerID, req.Name)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromIssued(issued))
}

// List handles GET /api-keys
func (h *APIKeyHandler) List(c *gin.Context) {
	ownerID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}

	keys, err := h.service.List(c.Request.Context(), ownerID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.APIKeyResponse, len(keys))
	for i, k := range keys {
		items[i] = dto.FromAPIKey(k)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Revoke handles DELETE /api-keys/:id
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	ownerID, ok := h.CurrentUserID(c)
	if !ok {
		return
	}
	keyID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}

	if err := h.service.Revoke(c.Request.Context(), ownerID, keyID); err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MessageResponse{Message: "API key deleted successfully"})
}

// Verify handles POST /api-keys/verify
func (h *APIKeyHandler) Verify(c *gin.Context) {
	var req dto.VerifyAPIKeyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	valid, err := h.service.Verify(c.Request.Context(), req.APIKey)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.VerifyAPIKeyResponse{Valid: valid})
}

// RegisterRoutes registers API key routes.
func (h *APIKeyHandler) RegisterRoutes(public, protected *gin.RouterGroup) {
	public.POST("/verify", h.Verify)

	protected.POST("", h.Create)
	protected.GET("", h.List)
	protected.DELETE("/:id", h.Revoke)
}
