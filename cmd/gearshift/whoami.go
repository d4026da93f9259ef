package main

import (
	"net/http"

	"github.com/gearshift/gearshift"
	"github.com/gearshift/gearshift/middlewares"
	"github.com/gearshift/gearshift/pkg/authz"
)

type whoamiResponse struct {
	UserName    string   `json:"user_name"`
	UserID      string   `json:"user_id"`
	Groups      []string `json:"groups"`
	Permissions []string `json:"permissions"`
	VisitKey    string   `json:"visit_key"`
}

// whoami reports the identity bound to the current visit.
type whoami struct{}

func (whoami) Routes(r gearshift.Router) {
	r.GET("/whoami", func(c gearshift.Context) error {
		id := c.Identity()
		resp := whoamiResponse{
			UserName:    id.UserName(),
			UserID:      id.UserID().String(),
			Groups:      id.Groups(),
			Permissions: id.Permissions(),
		}
		if v := c.Visit(); v != nil {
			resp.VisitKey = v.Key
		}
		return c.JSON(http.StatusOK, resp)
	}, middlewares.Require(authz.NotAnonymous()))
}
