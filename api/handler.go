// Package api exposes the resolution engine over HTTP. It is a thin
// adapter: all authorization semantics live in the authz package.
package api

import (
	"net/http"

	"github.com/getkayan/teamwork/authz"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	resolver authz.Resolver
}

func NewHandler(resolver authz.Resolver) *Handler {
	return &Handler{resolver: resolver}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/resolve", h.HandleResolve)
	g.POST("/check", h.HandleCheck)
}

// SubjectBody is the wire form of a subject. An absent/empty subject is
// treated as anonymous.
type SubjectBody struct {
	ID        string   `json:"id"`
	Anonymous bool     `json:"anonymous"`
	Superuser bool     `json:"superuser"`
	Groups    []string `json:"groups"`
}

// ResourceBody is the wire form of a resource reference.
type ResourceBody struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

func (h *Handler) HandleResolve(c echo.Context) error {
	var body struct {
		Subject  SubjectBody   `json:"subject"`
		Resource *ResourceBody `json:"resource"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}

	sub, err := subjectFromBody(body.Subject)
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid subject", err)
	}
	ref, err := refFromBody(body.Resource)
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid resource", err)
	}

	perms, err := h.resolver.Resolve(c.Request().Context(), sub, ref)
	if err != nil {
		return h.Error(c, http.StatusUnprocessableEntity, "Resolution failed", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"permissions": perms.Slice(),
	})
}

func (h *Handler) HandleCheck(c echo.Context) error {
	var body struct {
		Subject    SubjectBody   `json:"subject"`
		Resource   *ResourceBody `json:"resource"`
		Permission string        `json:"permission"`
	}
	if err := c.Bind(&body); err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid request body", err)
	}
	if body.Permission == "" {
		return h.Error(c, http.StatusBadRequest, "Permission is required", nil)
	}

	sub, err := subjectFromBody(body.Subject)
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid subject", err)
	}
	ref, err := refFromBody(body.Resource)
	if err != nil {
		return h.Error(c, http.StatusBadRequest, "Invalid resource", err)
	}

	allowed, err := h.resolver.Authorized(c.Request().Context(), sub, ref, authz.Code(body.Permission))
	if err != nil {
		return h.Error(c, http.StatusUnprocessableEntity, "Resolution failed", err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"allowed": allowed,
	})
}

func (h *Handler) Error(c echo.Context, code int, message string, err error) error {
	resp := map[string]interface{}{
		"status": message,
		"code":   code,
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	return c.JSON(code, resp)
}

func subjectFromBody(b SubjectBody) (authz.Subject, error) {
	if b.Anonymous || b.ID == "" {
		return authz.AnonymousSubject(), nil
	}
	id, err := uuid.Parse(b.ID)
	if err != nil {
		return authz.Subject{}, err
	}
	sub := authz.Subject{ID: id, Superuser: b.Superuser}
	for _, g := range b.Groups {
		gid, err := uuid.Parse(g)
		if err != nil {
			return authz.Subject{}, err
		}
		sub.Groups = append(sub.Groups, gid)
	}
	return sub, nil
}

func refFromBody(b *ResourceBody) (*authz.ResourceRef, error) {
	if b == nil {
		return nil, nil
	}
	id, err := uuid.Parse(b.ID)
	if err != nil {
		return nil, err
	}
	ref := authz.NewResourceRef(b.Type, id)
	return &ref, nil
}
