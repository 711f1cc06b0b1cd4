// Package handler exposes collegepay over HTTP.
package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"collegepay/internal/apperr"
	"collegepay/internal/auth"
	"collegepay/internal/identity"
	"collegepay/internal/metrics"
	"collegepay/internal/model"
	"collegepay/internal/payment"
	"collegepay/internal/report"
)

const internalErrorMessage = "something went wrong, please try again"

// Resolver signs callers in.
type Resolver interface {
	Resolve(ctx context.Context, req identity.Request) (identity.Result, error)
	IssueCode(ctx context.Context, phone string) error
	CodesRequired() bool
}

// Sessions validates and revokes tokens.
type Sessions interface {
	auth.Sessions
	SignOut(ctx context.Context, s *identity.Session) error
}

// Events lists the event catalogue.
type Events interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
	GetEvent(ctx context.Context, id int64) (model.Event, error)
}

// Users looks up directory records.
type Users interface {
	FindByPhone(ctx context.Context, phone string) ([]model.User, error)
}

// Payments is the payment lifecycle.
type Payments interface {
	Submit(ctx context.Context, s *identity.Session, req payment.SubmitRequest) (payment.Receipt, error)
	ListForUser(ctx context.Context, s *identity.Session) ([]model.PaymentView, error)
	ListAll(ctx context.Context, s *identity.Session, f report.Filter) (payment.Dashboard, error)
	Transition(ctx context.Context, s *identity.Session, paymentID int64, target model.Status) (model.Payment, error)
	History(ctx context.Context, s *identity.Session, paymentID int64) ([]model.Transition, error)
}

type Handler struct {
	resolver      Resolver
	sessions      Sessions
	guard         *auth.Guard
	users         Users
	events        Events
	payments      Payments
	maxProofBytes int64
}

func New(resolver Resolver, sessions Sessions, guard *auth.Guard, users Users, events Events, payments Payments, maxProofBytes int) *Handler {
	if maxProofBytes <= 0 {
		maxProofBytes = 5 << 20
	}
	return &Handler{
		resolver:      resolver,
		sessions:      sessions,
		guard:         guard,
		users:         users,
		events:        events,
		payments:      payments,
		maxProofBytes: int64(maxProofBytes),
	}
}

// Routes wires every endpoint under /v1. loginLimit guards the auth routes and
// may be nil.
func (h *Handler) Routes(r gin.IRouter, loginLimit gin.HandlerFunc, adminLoginPath string) {
	v1 := r.Group("/v1")

	authGroup := v1.Group("/auth")
	if loginLimit != nil {
		authGroup.Use(loginLimit)
	}
	authGroup.POST("/otp", h.RequestCode)
	authGroup.POST("/login", h.Login)
	authGroup.POST("/logout", auth.RequireSession(h.sessions), h.Logout)

	v1.GET("/events", h.ListEvents)
	v1.GET("/events/:id", h.GetEvent)

	student := v1.Group("", auth.RequireSession(h.sessions))
	student.GET("/me", h.Me)
	student.POST("/payments", h.SubmitPayment)
	student.GET("/payments", h.ListMyPayments)

	admin := v1.Group("/admin", auth.RequireAdmin(h.sessions, h.guard, adminLoginPath))
	admin.GET("/payments", h.ListPayments)
	admin.GET("/payments/export", h.ExportPayments)
	admin.PATCH("/payments/:id/status", h.UpdateStatus)
	admin.GET("/payments/:id/transitions", h.ListTransitions)
}

// ---------- Auth ----------

type codeRequest struct {
	Phone string `json:"phone_number" binding:"required"`
}

func (h *Handler) RequestCode(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone_number is required"})
		return
	}
	if err := h.resolver.IssueCode(c.Request.Context(), req.Phone); err != nil {
		h.fail(c, "RequestCode", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"sent": true})
}

type loginRequest struct {
	Phone string `json:"phone_number"`
	Name  string `json:"name"`
	Admin bool   `json:"admin"`
	Code  string `json:"code"`
}

// Login resolves the caller and returns an access token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid login request"})
		return
	}
	role := model.RoleStudent
	if req.Admin {
		role = model.RoleAdmin
	}

	res, err := h.resolver.Resolve(c.Request.Context(), identity.Request{
		Phone: req.Phone,
		Name:  req.Name,
		Admin: req.Admin,
		Code:  req.Code,
	})
	metrics.TrackLogin(role, err == nil)
	if err != nil {
		h.fail(c, "Login", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": res.Session.AccessToken,
		"expires_at":   res.Session.ExpiresAt.Unix(),
		"handle":       res.Handle,
		"display_name": res.DisplayName,
		"role":         role,
		"user":         res.User,
	})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.SignOut(c.Request.Context(), auth.SessionFrom(c)); err != nil {
		h.fail(c, "Logout", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Me describes the signed-in caller.
func (h *Handler) Me(c *gin.Context) {
	s := auth.SessionFrom(c)
	users, err := h.users.FindByPhone(c.Request.Context(), s.Phone())
	if err != nil {
		h.fail(c, "Me", err)
		return
	}
	if len(users) == 0 {
		h.fail(c, "Me", apperr.NotFound("no user registered for this session"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user":     users[0],
		"handle":   s.Handle,
		"role":     s.Role,
		"is_admin": h.guard.IsAdmin(c.Request.Context(), s),
	})
}

// ---------- Events ----------

func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.events.ListEvents(c.Request.Context())
	if err != nil {
		h.fail(c, "ListEvents", err)
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (h *Handler) GetEvent(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	event, err := h.events.GetEvent(c.Request.Context(), id)
	if err != nil {
		h.fail(c, "GetEvent", err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// ---------- Payments ----------

type submitRequest struct {
	EventID        int64  `json:"event_id" form:"event_id" binding:"required"`
	TransactionRef string `json:"transaction_id" form:"transaction_id"`
	Proof          string `json:"proof" form:"-"`
}

// SubmitPayment accepts JSON with an optional data URL proof, or a multipart
// form carrying the screenshot as the "proof" file.
func (h *Handler) SubmitPayment(c *gin.Context) {
	var req submitRequest
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
			return
		}
		proof, err := h.proofFromForm(c)
		if err != nil {
			h.fail(c, "SubmitPayment", err)
			return
		}
		req.Proof = proof
	} else {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxJSONBody())
		if err := c.ShouldBindJSON(&req); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				h.fail(c, "SubmitPayment", apperr.Validation("payment screenshot is larger than %d bytes", h.maxProofBytes))
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "event_id is required"})
			return
		}
	}

	receipt, err := h.payments.Submit(c.Request.Context(), auth.SessionFrom(c), payment.SubmitRequest{
		EventID:        req.EventID,
		TransactionRef: req.TransactionRef,
		Proof:          req.Proof,
	})
	if err != nil {
		h.fail(c, "SubmitPayment", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"payment_id": receipt.Payment.ID,
		"event_name": receipt.EventName,
		"status":     receipt.Payment.Status,
		"amount":     receipt.Payment.Amount,
	})
}

// maxJSONBody fits a base64 proof of the maximum size plus the other fields.
func (h *Handler) maxJSONBody() int64 {
	return int64(base64.StdEncoding.EncodedLen(int(h.maxProofBytes))) + 64<<10
}

// proofFromForm reads the optional "proof" file as a data URL.
func (h *Handler) proofFromForm(c *gin.Context) (string, error) {
	file, header, err := c.Request.FormFile("proof")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", apperr.Validation("unreadable payment screenshot")
	}
	defer file.Close()

	if header.Size > h.maxProofBytes {
		return "", apperr.Validation("payment screenshot is larger than %d bytes", h.maxProofBytes)
	}
	data, err := io.ReadAll(io.LimitReader(file, h.maxProofBytes+1))
	if err != nil {
		return "", fmt.Errorf("read proof: %w", err)
	}
	if len(data) == 0 {
		return "", nil
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") {
		return "", apperr.Validation("payment screenshot must be an image")
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (h *Handler) ListMyPayments(c *gin.Context) {
	views, err := h.payments.ListForUser(c.Request.Context(), auth.SessionFrom(c))
	if err != nil {
		h.fail(c, "ListMyPayments", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": views})
}

// ---------- Admin ----------

func filterFrom(c *gin.Context) report.Filter {
	return report.Filter{Status: c.Query("status"), Search: c.Query("q")}
}

func (h *Handler) ListPayments(c *gin.Context) {
	dash, err := h.payments.ListAll(c.Request.Context(), auth.SessionFrom(c), filterFrom(c))
	if err != nil {
		h.fail(c, "ListPayments", err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

// ExportPayments streams the filtered payments as CSV.
func (h *Handler) ExportPayments(c *gin.Context) {
	dash, err := h.payments.ListAll(c.Request.Context(), auth.SessionFrom(c), filterFrom(c))
	if err != nil {
		h.fail(c, "ExportPayments", err)
		return
	}
	name := fmt.Sprintf("payments-%s.csv", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Status(http.StatusOK)
	if err := report.WriteCSV(c.Writer, dash.Payments); err != nil {
		slog.Error("ExportPayments(): write csv failed", "error", err)
	}
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}
	p, err := h.payments.Transition(c.Request.Context(), auth.SessionFrom(c), id, model.Status(strings.TrimSpace(req.Status)))
	if err != nil {
		h.fail(c, "UpdateStatus", err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ListTransitions(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	history, err := h.payments.History(c.Request.Context(), auth.SessionFrom(c), id)
	if err != nil {
		h.fail(c, "ListTransitions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transitions": history})
}

// ---------- helpers ----------

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// fail maps err to a response. Unclassified errors are logged and hidden.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error(op+"(): request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": internalErrorMessage})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrAuthorization):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
