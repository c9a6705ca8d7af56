package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/qiwenmao/coatlab-backend/internal/bizcode"
	"github.com/qiwenmao/coatlab-backend/internal/logger"
	"github.com/qiwenmao/coatlab-backend/internal/services"
	"github.com/qiwenmao/coatlab-backend/internal/types"
)

type FormulaHandler struct {
	log            *logger.Logger
	formulaService services.FormulaService
}

func NewFormulaHandler(log *logger.Logger, formulaService services.FormulaService) *FormulaHandler {
	return &FormulaHandler{
		log:            log.With("handler", "FormulaHandler"),
		formulaService: formulaService,
	}
}

// transitionRequest is the body of all four status endpoints; reason is only
// read by the unqualified transition.
type transitionRequest struct {
	Index  string `json:"index"`
	Reason string `json:"reason"`
}

func (h *FormulaHandler) List(c *gin.Context) {
	designTaskIndex := c.Param("designTaskIndex")
	records, err := h.formulaService.List(c.Request.Context(), nil, designTaskIndex)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondData(c, records)
}

func (h *FormulaHandler) Create(c *gin.Context) {
	designTaskIndex := c.Param("designTaskIndex")
	var record types.FormulaRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		RespondErr(c, bizcode.Newf(bizcode.MissingParameter, "invalid formula payload: %v", err))
		return
	}
	created, err := h.formulaService.Create(c.Request.Context(), nil, designTaskIndex, &record)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondData(c, created)
}

func (h *FormulaHandler) Update(c *gin.Context) {
	index := c.Param("index")
	var record types.FormulaRecord
	if err := c.ShouldBindJSON(&record); err != nil {
		RespondErr(c, bizcode.Newf(bizcode.MissingParameter, "invalid formula payload: %v", err))
		return
	}
	updated, err := h.formulaService.Update(c.Request.Context(), nil, index, &record)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondData(c, updated)
}

func (h *FormulaHandler) Delete(c *gin.Context) {
	index := c.Param("index")
	if err := h.formulaService.Delete(c.Request.Context(), nil, index); err != nil {
		RespondErr(c, err)
		return
	}
	RespondOK(c)
}

func (h *FormulaHandler) MarkPending(c *gin.Context) {
	req, ok := h.bindTransition(c)
	if !ok {
		return
	}
	record, err := h.formulaService.MarkPending(c.Request.Context(), req.Index)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondData(c, record)
}

func (h *FormulaHandler) MarkQualified(c *gin.Context) {
	req, ok := h.bindTransition(c)
	if !ok {
		return
	}
	record, err := h.formulaService.MarkQualified(c.Request.Context(), req.Index)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondData(c, record)
}

func (h *FormulaHandler) MarkUnqualified(c *gin.Context) {
	req, ok := h.bindTransition(c)
	if !ok {
		return
	}
	record, err := h.formulaService.MarkUnqualified(c.Request.Context(), req.Index, req.Reason)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondData(c, record)
}

func (h *FormulaHandler) MarkProduction(c *gin.Context) {
	req, ok := h.bindTransition(c)
	if !ok {
		return
	}
	record, err := h.formulaService.MarkProduction(c.Request.Context(), req.Index)
	if err != nil {
		RespondErr(c, err)
		return
	}
	RespondData(c, record)
}

func (h *FormulaHandler) bindTransition(c *gin.Context) (transitionRequest, bool) {
	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondErr(c, bizcode.Newf(bizcode.MissingParameter, "invalid transition payload: %v", err))
		return req, false
	}
	return req, true
}
