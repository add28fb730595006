package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/mutation"
	"github.com/edi-spaghetti/cs50w-network/internal/query"
	"github.com/edi-spaghetti/cs50w-network/internal/service"
	pkglog "github.com/edi-spaghetti/cs50w-network/pkg/log"
	"github.com/edi-spaghetti/cs50w-network/pkg/middleware"
	"github.com/edi-spaghetti/cs50w-network/pkg/response"
)

// Handler handles HTTP requests for the network API.
type Handler struct {
	svc            service.NetworkService
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler creates a new HTTP handler. It switches gin's JSON binding to
// json.Number so ids and limits reach the components unrounded.
func NewHandler(svc service.NetworkService, authMiddleware *middleware.AuthMiddleware) *Handler {
	binding.EnableDecoderUseNumber = true
	return &Handler{
		svc:            svc,
		authMiddleware: authMiddleware,
	}
}

// RegisterRoutes registers all routes onto the Gin engine.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	api.Use(h.authMiddleware.Authenticate())
	{
		// POST /api/v1/whoami: no auth
		api.POST("/whoami", h.WhoAmI)
		// POST /api/v1/search: no auth
		api.POST("/search", h.Search)
		// GET /api/v1/csrf: auth required
		api.GET("/csrf", h.authMiddleware.RequireAuth(), h.CSRF)

		write := api.Group("", h.authMiddleware.RequireAuth(), h.authMiddleware.RequireCSRF())
		{
			// POST /api/v1/create: auth + CSRF required
			write.POST("/create", h.Create)
			// POST /api/v1/update: auth + CSRF required
			write.POST("/update", h.Update)
		}
	}
}

// caller builds the request identity from what Authenticate stored.
func caller(c *gin.Context) domain.Caller {
	return domain.Caller{
		ID:          middleware.GetUserID(c),
		Username:    middleware.GetUsername(c),
		Permissions: middleware.GetRoles(c),
		SessionID:   middleware.GetSessionID(c),
	}
}

// WhoAmI handles POST /api/v1/whoami.
func (h *Handler) WhoAmI(c *gin.Context) {
	response.Success(c, h.svc.WhoAmI(c.Request.Context(), caller(c)))
}

// Search handles POST /api/v1/search.
func (h *Handler) Search(c *gin.Context) {
	var req query.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	res, err := h.svc.Search(c.Request.Context(), caller(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, res)
}

// Create handles POST /api/v1/create.
func (h *Handler) Create(c *gin.Context) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		badBody(c, err)
		return
	}

	rec, err := h.svc.Create(c.Request.Context(), caller(c), payload)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, rec)
}

// Update handles POST /api/v1/update.
func (h *Handler) Update(c *gin.Context) {
	var req mutation.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	recs, err := h.svc.Update(c.Request.Context(), caller(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, gin.H{"data": recs})
}

// CSRF handles GET /api/v1/csrf.
func (h *Handler) CSRF(c *gin.Context) {
	token, err := h.svc.IssueCSRF(c.Request.Context(), caller(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header(middleware.CSRFHeaderKey, token)
	response.Success(c, gin.H{"csrfToken": token})
}

func badBody(c *gin.Context, err error) {
	l := pkglog.Ctx(c.Request.Context())
	l.Debug().Err(err).Msg("malformed request body")
	writeError(c, domain.Wrap(domain.KindInvalidField, err, "request body must be a JSON object"))
}

// statusOf maps an error kind to its HTTP status.
func statusOf(kind domain.Kind) int {
	switch kind {
	case domain.KindUnknownModel, domain.KindInvalidFilter, domain.KindInvalidField, domain.KindMissingModel:
		return http.StatusBadRequest
	case domain.KindValidation:
		return http.StatusUnprocessableEntity
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	c.Set(pkglog.FieldErrorKind, string(kind))
	msg := domain.MessageOf(err)
	switch status := statusOf(kind); status {
	case http.StatusBadRequest:
		response.BadRequest(c, string(kind), msg)
	case http.StatusInternalServerError:
		response.InternalError(c, msg)
	default:
		response.Error(c, status, string(kind), msg, kind.Retryable())
	}
}
