package api

import (
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/plan"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

const StatusPath = "/api/v2/status"

type statusResponse struct {
	Plan         string `json:"plan"`
	Environment  string `json:"environment"`
	CacheEnabled bool   `json:"cache_enabled"`
	PrefixPurge  bool   `json:"prefix_purge"`
	Version      string `json:"version"`
}

type StatusController struct {
	cfg *config.Config
}

func NewStatusController(cfg *config.Config) *StatusController {
	return &StatusController{cfg: cfg}
}

func (c *StatusController) Status(r *fasthttp.RequestCtx) {
	respondJSON(&statusResponse{
		Plan:         string(plan.Resolve(c.cfg)),
		Environment:  c.cfg.Environment,
		CacheEnabled: c.cfg.CacheEnabled && !c.cfg.PageCacheDisabled,
		PrefixPurge:  plan.SupportsPrefixPurge(c.cfg),
		Version:      config.Version,
	}, r)
}

func (c *StatusController) AddRoute(router *router.Router) {
	router.GET(StatusPath, c.Status)
}
