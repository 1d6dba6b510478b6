package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"voicelink/internal/domain"
	"voicelink/internal/service"
)

// APIVersion is reported by the health endpoint.
const APIVersion = "1.0.0"

const (
	msgLoginOK     = "Login erfolgreich"
	msgDeleted     = "Benutzer erfolgreich gelöscht"
	msgInvalidID   = "Ungültige Benutzer-ID"
	msgBadRequest  = "Ungültige Anfrage"
	msgUnexpected  = "Ein unerwarteter Fehler ist aufgetreten"
	healthMessage  = "VoiceLink API is running!"
	healthStatusOK = "active"
)

// Handler wires HTTP routes to the user service.
type Handler struct {
	users       service.UserService
	logger      *logrus.Logger
	corsOrigins []string
	metrics     *Metrics
}

// NewHandler builds a Handler. metrics may be nil.
func NewHandler(users service.UserService, logger *logrus.Logger, corsOrigins []string, metrics *Metrics) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		users:       users,
		logger:      logger,
		corsOrigins: corsOrigins,
		metrics:     metrics,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestID(), requestLogger(h.logger))
	if h.metrics != nil {
		router.Use(h.metrics.Middleware())
		router.GET("/metrics", h.metrics.Handler())
	}
	router.Use(corsMiddleware(h.corsOrigins))

	router.GET("/", h.health)
	router.POST("/register", h.register)
	router.POST("/login", h.login)

	users := router.Group("/users")
	{
		users.GET("", h.listUsers)
		users.GET("/:id", h.getUser)
		users.GET("/email/:email", h.getUserByEmail)
		users.DELETE("/:id", h.deleteUser)
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type UserResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

type LoginResponse struct {
	Message string       `json:"message"`
	User    UserResponse `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Message string `json:"message"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Message: healthMessage,
		Version: APIVersion,
		Status:  healthStatusOK,
	})
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Message: msgLoginOK,
		User:    userToResponse(*user),
	})
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) getUserByEmail(c *gin.Context) {
	user, err := h.users.GetByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.users.Delete(c.Request.Context(), id); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: msgDeleted})
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Detail: msgInvalidID})
		return 0, false
	}
	return id, true
}

func userToResponse(user domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
