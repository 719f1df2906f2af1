package handler

import (
	"net/http"

	"transport-requisition/internal/auth"
	"transport-requisition/internal/middleware"
	"transport-requisition/internal/model"
	"transport-requisition/internal/service"
	"transport-requisition/pkg/response"

	"github.com/gin-gonic/gin"
)

type ApprovalHandler struct {
	approvalService service.ApprovalService
	tokens          *auth.Tokens
}

func NewApprovalHandler(approvalService service.ApprovalService, tokens *auth.Tokens) *ApprovalHandler {
	return &ApprovalHandler{approvalService: approvalService, tokens: tokens}
}

func (h *ApprovalHandler) RegisterRoutes(router *gin.RouterGroup) {
	approvals := router.Group("/approvals")
	approvals.Use(middleware.RequireAuth(h.tokens))
	{
		approvals.POST("", h.CreateApproval)
		approvals.GET("/pending", h.GetPendingApprovals)
		approvals.GET("/requisition/:requisitionId", h.GetApprovalsByRequisition)
		approvals.POST("/:approvalId/process", h.ProcessApproval)
		approvals.GET("/:approvalId", h.GetApprovalByID)
		approvals.DELETE("/:approvalId", middleware.RequireRole(h.tokens, model.RoleAdmin), h.DeleteApproval)
	}
}

// ProcessApproval records the caller's decision on one stage
// @Summary      Process approval
// @Description  Approves or rejects a pending stage. Approving opens the next stage or finalises the requisition.
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        approvalId  path      string                          true  "Approval ID"
// @Param        payload     body      service.ProcessApprovalRequest  true  "Decision"
// @Success      200         {object}  response.Response{data=model.Approval}
// @Failure      400         {object}  response.Response
// @Failure      403         {object}  response.Response
// @Failure      404         {object}  response.Response
// @Failure      409         {object}  response.Response
// @Router       /api/approvals/{approvalId}/process [post]
func (h *ApprovalHandler) ProcessApproval(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "approvalId")
	if !ok {
		return
	}

	var req service.ProcessApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	approval, err := h.approvalService.ProcessApproval(c.Request.Context(), id, req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, approval))
}

// GetPendingApprovals lists the stages waiting on the caller
// @Summary      Pending approvals
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  response.Response{data=[]model.Approval}
// @Router       /api/approvals/pending [get]
func (h *ApprovalHandler) GetPendingApprovals(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	approvals, err := h.approvalService.GetPendingApprovalsForUser(c.Request.Context(), actor.UserID, actor.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, approvals))
}

// GetApprovalByID
// @Summary      Get approval
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        approvalId  path      string  true  "Approval ID"
// @Success      200         {object}  response.Response{data=model.Approval}
// @Failure      404         {object}  response.Response
// @Router       /api/approvals/{approvalId} [get]
func (h *ApprovalHandler) GetApprovalByID(c *gin.Context) {
	id, ok := uuidParam(c, "approvalId")
	if !ok {
		return
	}

	approval, err := h.approvalService.GetApprovalByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, approval))
}

// GetApprovalsByRequisition returns the stage history of a requisition, oldest first
// @Summary      Approval history
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        requisitionId  path      string  true  "Requisition ID"
// @Success      200            {object}  response.Response{data=[]model.Approval}
// @Failure      404            {object}  response.Response
// @Router       /api/approvals/requisition/{requisitionId} [get]
func (h *ApprovalHandler) GetApprovalsByRequisition(c *gin.Context) {
	id, ok := uuidParam(c, "requisitionId")
	if !ok {
		return
	}

	approvals, err := h.approvalService.GetApprovalsByRequisition(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, approvals))
}

// CreateApproval opens a stage manually
// @Summary      Create approval
// @Tags         approvals
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        payload  body      service.CreateApprovalRequest  true  "Approval"
// @Success      201      {object}  response.Response{data=model.Approval}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /api/approvals [post]
func (h *ApprovalHandler) CreateApproval(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}

	var req service.CreateApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	approval, err := h.approvalService.CreateApproval(c.Request.Context(), req, actor)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, approval))
}

// DeleteApproval
// @Summary      Delete approval
// @Tags         approvals
// @Produce      json
// @Security     BearerAuth
// @Param        approvalId  path      string  true  "Approval ID"
// @Success      200         {object}  response.Response
// @Failure      404         {object}  response.Response
// @Router       /api/approvals/{approvalId} [delete]
func (h *ApprovalHandler) DeleteApproval(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "approvalId")
	if !ok {
		return
	}

	if err := h.approvalService.DeleteApproval(c.Request.Context(), id, actor); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Approval deleted successfully"))
}
