package records

import (
	"github.com/labstack/echo/v4"
	"github.com/uptrace/bun"
)

// RegisterRoutesWithGroup registers record routes on a pre-configured group.
func RegisterRoutesWithGroup(g *echo.Group, db *bun.DB, applier Applier) {
	h := &handler{
		recordService: NewService(db),
		applier:       applier,
	}

	g.GET("", h.list)
	g.GET("/:id", h.retrieve)
	g.POST("/:id", h.update)
	g.POST("/:id/apply", h.apply)
}
