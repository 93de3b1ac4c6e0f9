package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docsign/internal/templates"
)

type TemplateRoutes struct {
	server ServerInterface
}

func NewTemplateRoutes(server ServerInterface) *TemplateRoutes {
	return &TemplateRoutes{server: server}
}

func (tr *TemplateRoutes) RegisterRoutes(r *gin.Engine) {
	middleware := NewMiddleware(tr.server)

	categories := r.Group("/categories")
	categories.Use(middleware.ActorMiddleware())
	{
		categories.GET("", tr.listCategoriesHandler)
		categories.POST("", tr.createCategoryHandler)
	}

	templates := r.Group("/templates")
	templates.Use(middleware.ActorMiddleware())
	{
		templates.POST("", tr.createTemplateHandler)
		templates.GET("", tr.listTemplatesHandler)
		templates.GET("/:templateID", tr.getTemplateHandler)
		templates.PUT("/:templateID", tr.updateTemplateHandler)
		templates.DELETE("/:templateID", tr.deleteTemplateHandler)
		templates.POST("/:templateID/duplicate", tr.duplicateTemplateHandler)
	}
}

func (tr *TemplateRoutes) listCategoriesHandler(c *gin.Context) {
	categories, err := tr.server.GetTemplates().ListCategories(c.Request.Context())
	if err != nil {
		respondError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (tr *TemplateRoutes) createCategoryHandler(c *gin.Context) {
	var req struct {
		Name string `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	category, err := tr.server.GetTemplates().CreateCategory(c.Request.Context(), actorFrom(c), req.Name)
	if err != nil {
		respondError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": category})
}

func (tr *TemplateRoutes) createTemplateHandler(c *gin.Context) {
	var req templates.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	template, err := tr.server.GetTemplates().Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		respondError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": template})
}

// listTemplatesHandler supports ?category_id=, ?active=true and ?q=.
func (tr *TemplateRoutes) listTemplatesHandler(c *gin.Context) {
	var filter templates.ListFilter
	if raw := c.Query("category_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "Invalid category_id")
			return
		}
		filter.CategoryID = &id
	}
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "Invalid active flag")
			return
		}
		filter.ActiveOnly = active
	}
	filter.Search = c.Query("q")

	list, err := tr.server.GetTemplates().List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": list})
}

func (tr *TemplateRoutes) getTemplateHandler(c *gin.Context) {
	id, ok := paramUUID(c, "templateID")
	if !ok {
		return
	}

	template, err := tr.server.GetTemplates().Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": template})
}

func (tr *TemplateRoutes) updateTemplateHandler(c *gin.Context) {
	id, ok := paramUUID(c, "templateID")
	if !ok {
		return
	}
	var req templates.UpdateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	template, err := tr.server.GetTemplates().Update(c.Request.Context(), actorFrom(c), id, req)
	if err != nil {
		respondError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"template": template})
}

func (tr *TemplateRoutes) deleteTemplateHandler(c *gin.Context) {
	id, ok := paramUUID(c, "templateID")
	if !ok {
		return
	}

	if err := tr.server.GetTemplates().Delete(c.Request.Context(), actorFrom(c), id); err != nil {
		respondError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}

func (tr *TemplateRoutes) duplicateTemplateHandler(c *gin.Context) {
	id, ok := paramUUID(c, "templateID")
	if !ok {
		return
	}

	template, err := tr.server.GetTemplates().Duplicate(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, tr.server.GetLogger(), err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"template": template})
}
