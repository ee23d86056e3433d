package controllers

import (
	"net/http"
	"strconv"

	"authbase/internal/messages"
	"authbase/internal/models"
	"authbase/internal/objects"

	"github.com/labstack/echo/v4"
)

// Envelope is the uniform response wrapper of the generic REST surface.
// Messages accumulated while handling the request ride along so the client
// can surface warnings even on success.
type Envelope struct {
	OK       bool               `json:"ok"`
	NumFound int64              `json:"numFound"`
	Results  interface{}        `json:"results"`
	Messages []messages.Message `json:"messages"`
}

// RestController serves every registered type through one set of handlers:
//
//	GET  /rest/:type      list with filters, sort and paging
//	GET  /rest/:type/:id  fetch one
//	PUT  /rest/:type      insert
//	POST /rest/:type/:id  update
//
// Which concrete types exist is decided by the model registry, not by the
// routes.
type RestController struct {
	objects *objects.Service
	// reserved are query parameters that are never property filters.
	reserved map[string]bool
}

func NewRestController(svc *objects.Service, tokenParam string) *RestController {
	return &RestController{
		objects: svc,
		reserved: map[string]bool{
			"sort":     true,
			"start":    true,
			"count":    true,
			tokenParam: true,
		},
	}
}

func (rc *RestController) Register(g *echo.Group) {
	g.GET("/:type", rc.List)
	g.GET("/:type/:id", rc.Get)
	g.PUT("/:type", rc.Create)
	g.POST("/:type/:id", rc.Update)
}

func (rc *RestController) List(c echo.Context) error {
	ctx, sink := messages.NewContext(c.Request().Context())

	opts := objects.ListOptions{
		Filters: map[string]string{},
		Sort:    c.QueryParam("sort"),
	}
	opts.Start, _ = strconv.Atoi(c.QueryParam("start"))
	opts.Count, _ = strconv.Atoi(c.QueryParam("count"))
	for key, values := range c.QueryParams() {
		if !rc.reserved[key] && len(values) > 0 {
			opts.Filters[key] = values[0]
		}
	}

	results, numFound, err := rc.objects.List(ctx, c.Param("type"), opts)
	if err != nil {
		return err
	}
	return respond(c, sink, results, numFound)
}

func (rc *RestController) Get(c echo.Context) error {
	ctx, sink := messages.NewContext(c.Request().Context())

	id, err := parseID(c)
	if err != nil {
		return err
	}
	entity, err := rc.objects.Get(ctx, c.Param("type"), id)
	if err != nil {
		return err
	}
	return respond(c, sink, []models.Entity{entity}, 1)
}

func (rc *RestController) Create(c echo.Context) error {
	ctx, sink := messages.NewContext(c.Request().Context())

	typeName := c.Param("type")
	desc, ok := models.Lookup(typeName)
	if !ok {
		return objects.ErrUnknownType
	}
	entity := desc.New()
	if err := c.Bind(entity); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(entity); err != nil {
		return err
	}
	if err := rc.objects.Insert(ctx, typeName, entity); err != nil {
		return err
	}
	sink.Success("Created %s %d.", typeName, entity.GetID())
	return respond(c, sink, []models.Entity{entity}, 1)
}

func (rc *RestController) Update(c echo.Context) error {
	ctx, sink := messages.NewContext(c.Request().Context())

	typeName := c.Param("type")
	desc, ok := models.Lookup(typeName)
	if !ok {
		return objects.ErrUnknownType
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	entity := desc.New()
	if err := c.Bind(entity); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(entity); err != nil {
		return err
	}
	if entity.GetID() == 0 {
		entity.SetID(id)
	} else if entity.GetID() != id {
		return echo.NewHTTPError(http.StatusBadRequest, "body id does not match path id")
	}

	if err := rc.objects.Update(ctx, typeName, entity); err != nil {
		return err
	}
	sink.Success("Updated %s %d.", typeName, id)
	return respond(c, sink, []models.Entity{entity}, 1)
}

func parseID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "id must be numeric")
	}
	return id, nil
}

func respond(c echo.Context, sink *messages.Sink, results interface{}, numFound int64) error {
	return c.JSON(http.StatusOK, Envelope{
		OK:       sink.ErrorCount() == 0,
		NumFound: numFound,
		Results:  results,
		Messages: sink.Drain(),
	})
}
