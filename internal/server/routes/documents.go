package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docsign/internal/documents"
	"docsign/internal/models"
	"docsign/internal/signature"
)

const maxListLimit = 100

type DocumentRoutes struct {
	server ServerInterface
}

func NewDocumentRoutes(server ServerInterface) *DocumentRoutes {
	return &DocumentRoutes{server: server}
}

func (dr *DocumentRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(dr.server)

	docs := r.Group("/documents")
	docs.Use(middleware.ActorMiddleware())
	{
		docs.POST("", dr.createDocumentHandler)
		docs.GET("", dr.listDocumentsHandler)
		docs.POST("/preview", dr.previewDocumentHandler)
		docs.GET("/:documentID", dr.getDocumentHandler)
		docs.PUT("/:documentID", dr.updateDocumentHandler)
		docs.DELETE("/:documentID", dr.deleteDocumentHandler)
		docs.POST("/:documentID/finalize", dr.finalizeDocumentHandler)
		docs.POST("/:documentID/send", dr.sendDocumentHandler)
		docs.POST("/:documentID/signatures", dr.captureSignatureHandler)
		docs.GET("/:documentID/signatures", dr.listSignaturesHandler)
		docs.PUT("/:documentID/status", dr.forceStatusHandler)
		docs.GET("/:documentID/export", dr.exportDocumentHandler)
	}
}

func (dr *DocumentRoutes) createDocumentHandler(c *gin.Context) {
	var req documents.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	doc, err := dr.server.GetDocuments().Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": doc})
}

func (dr *DocumentRoutes) previewDocumentHandler(c *gin.Context) {
	var req documents.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	preview, err := dr.server.GetDocuments().Preview(c.Request.Context(), req)
	if err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preview": preview})
}

// listDocumentsHandler supports ?status=, ?template_id=, ?q=, ?limit= and
// ?offset=. counts covers every document regardless of the filters.
func (dr *DocumentRoutes) listDocumentsHandler(c *gin.Context) {
	filter := models.DocumentFilter{
		Status: models.DocumentStatus(c.Query("status")),
		Search: c.Query("q"),
		Limit:  50,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		badRequest(c, "Invalid status")
		return
	}
	if raw := c.Query("template_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "Invalid template_id")
			return
		}
		filter.TemplateID = &id
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			badRequest(c, "Invalid limit")
			return
		}
		filter.Limit = min(limit, maxListLimit)
	}
	if raw := c.Query("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			badRequest(c, "Invalid offset")
			return
		}
		filter.Offset = offset
	}

	list, err := dr.server.GetDocuments().List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	counts, err := dr.server.GetDocuments().StatusCounts(c.Request.Context())
	if err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": list, "counts": counts})
}

func (dr *DocumentRoutes) getDocumentHandler(c *gin.Context) {
	id, ok := paramUUID(c, "documentID")
	if !ok {
		return
	}

	doc, err := dr.server.GetDocuments().Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document":    doc,
		"next_status": documents.NextStatuses(doc.Status),
	})
}

func (dr *DocumentRoutes) updateDocumentHandler(c *gin.Context) {
	id, ok := paramUUID(c, "documentID")
	if !ok {
		return
	}
	var req documents.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	doc, err := dr.server.GetDocuments().UpdateDraft(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

func (dr *DocumentRoutes) deleteDocumentHandler(c *gin.Context) {
	id, ok := paramUUID(c, "documentID")
	if !ok {
		return
	}

	if err := dr.server.GetDocuments().Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}

func (dr *DocumentRoutes) finalizeDocumentHandler(c *gin.Context) {
	id, ok := paramUUID(c, "documentID")
	if !ok {
		return
	}

	doc, err := dr.server.GetDocuments().Finalize(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

func (dr *DocumentRoutes) sendDocumentHandler(c *gin.Context) {
	id, ok := paramUUID(c, "documentID")
	if !ok {
		return
	}
	var req struct {
		To string `json:"to"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	doc, err := dr.server.GetDocuments().Send(c.Request.Context(), actorFrom(c), id, req.To)
	if err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

type captureSignatureRequest struct {
	signature.SignerInfo
	SignatureImage string `json:"signature_image"`
}

func (dr *DocumentRoutes) captureSignatureHandler(c *gin.Context) {
	id, ok := paramUUID(c, "documentID")
	if !ok {
		return
	}
	var req captureSignatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	result, err := dr.server.GetSignatures().Capture(c.Request.Context(), actorFrom(c), id, req.SignerInfo, req.SignatureImage, signature.Metadata{
		ClientIP:  c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	if err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (dr *DocumentRoutes) listSignaturesHandler(c *gin.Context) {
	id, ok := paramUUID(c, "documentID")
	if !ok {
		return
	}

	records, err := dr.server.GetDocuments().Signatures(c.Request.Context(), id)
	if err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"signatures": records})
}

func (dr *DocumentRoutes) forceStatusHandler(c *gin.Context) {
	id, ok := paramUUID(c, "documentID")
	if !ok {
		return
	}
	var req struct {
		Status models.DocumentStatus `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	doc, err := dr.server.GetDocuments().ForceStatus(c.Request.Context(), actorFrom(c), id, req.Status)
	if err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document": doc})
}

// exportDocumentHandler returns the printable markup, as JSON by default or
// as the raw page with ?format=html.
func (dr *DocumentRoutes) exportDocumentHandler(c *gin.Context) {
	id, ok := paramUUID(c, "documentID")
	if !ok {
		return
	}

	export, err := dr.server.GetDocuments().Export(c.Request.Context(), id)
	if err != nil {
		respondError(c, dr.server.GetLogger(), err)
		return
	}
	if c.Query("format") == "html" {
		c.Header("X-Export-Source", export.Source)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(export.Content))
		return
	}
	c.JSON(http.StatusOK, gin.H{"export": export})
}
