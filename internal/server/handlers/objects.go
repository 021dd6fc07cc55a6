package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"scriptor/internal/core/apperror"
	"scriptor/internal/core/model"
	"scriptor/internal/server/dto"
)

// ObjectsHandler exposes registered business objects over HTTP. Reads run
// inside the request transaction and roll back at release; writes commit
// explicitly before responding.
type ObjectsHandler struct {
	*BaseHandler
}

// NewObjectsHandler creates the handler.
func NewObjectsHandler(base *BaseHandler) *ObjectsHandler {
	return &ObjectsHandler{BaseHandler: base}
}

// RegisterRoutes mounts the object endpoints on rg.
func (h *ObjectsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	objects := rg.Group("/objects")
	{
		objects.POST("/:name/search", h.Search)
		objects.GET("/:name/:key", h.Read)
		objects.PUT("/:name/:key", h.Write)
		objects.DELETE("/:name/:key", h.Delete)
	}
}

func (h *ObjectsHandler) lookup(c *gin.Context) (model.Accessor, bool) {
	e, ok := h.Env(c)
	if !ok {
		return nil, false
	}
	acc, err := e.Lookup(c.Param("name"))
	if err != nil {
		if errors.Is(err, model.ErrUnknownObject) {
			h.Error(c, apperror.NewNotFound("object", c.Param("name")))
			return nil, false
		}
		h.Error(c, apperror.NewInternal(err))
		return nil, false
	}
	return acc, true
}

// Search handles POST /objects/:name/search.
func (h *ObjectsHandler) Search(c *gin.Context) {
	acc, ok := h.lookup(c)
	if !ok {
		return
	}

	var req dto.SearchRequest
	if !h.BindJSON(c, &req) {
		return
	}

	filters := make([]model.Filter, 0, len(req.Filters))
	for _, f := range req.Filters {
		op := model.Op(f.Op)
		if op == "" {
			op = model.OpEqual
		}
		filters = append(filters, model.Filter{Field: f.Field, Op: op, Value: f.Value})
	}

	records, err := acc.Search(c.Request.Context(), filters)
	if err != nil {
		h.Error(c, err)
		return
	}

	out := make([]map[string]any, 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	c.JSON(http.StatusOK, dto.RecordsResponse{Records: out, Count: len(out)})
}

// Read handles GET /objects/:name/:key.
func (h *ObjectsHandler) Read(c *gin.Context) {
	acc, ok := h.lookup(c)
	if !ok {
		return
	}

	rec, err := acc.Read(c.Request.Context(), c.Param("key"))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			h.Error(c, apperror.NewNotFound(c.Param("name"), c.Param("key")))
			return
		}
		h.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Write handles PUT /objects/:name/:key. The commit is explicit; without
// it the release at request end would discard the change.
func (h *ObjectsHandler) Write(c *gin.Context) {
	e, ok := h.Env(c)
	if !ok {
		return
	}
	acc, ok := h.lookup(c)
	if !ok {
		return
	}

	var req dto.WriteRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	if err := acc.Write(ctx, c.Param("key"), model.Record(req.Values)); err != nil {
		h.Error(c, err)
		return
	}
	if err := e.Commit(ctx); err != nil {
		h.Error(c, apperror.NewCommitFailed(err))
		return
	}
	c.JSON(http.StatusOK, dto.StatusResponse{Status: "ok"})
}

// Delete handles DELETE /objects/:name/:key, committing like Write.
func (h *ObjectsHandler) Delete(c *gin.Context) {
	e, ok := h.Env(c)
	if !ok {
		return
	}
	acc, ok := h.lookup(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := acc.Delete(ctx, c.Param("key")); err != nil {
		h.Error(c, err)
		return
	}
	if err := e.Commit(ctx); err != nil {
		h.Error(c, apperror.NewCommitFailed(err))
		return
	}
	c.JSON(http.StatusOK, dto.StatusResponse{Status: "ok"})
}
