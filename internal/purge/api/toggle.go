package api

import (
	"context"
	"encoding/json"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/dispatch"
	"github.com/fasthttp/router"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

// CacheTogglePath flips page caching on or off. Disabling also purges the
// whole zone so stale pages do not outlive the setting.
const CacheTogglePath = "/api/v2/cache"

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type toggleResponse struct {
	Success      bool   `json:"success"`
	CacheEnabled bool   `json:"cache_enabled"`
	Message      string `json:"message,omitempty"`
}

type CacheToggleController struct {
	ctx  context.Context
	cfg  *config.Config
	disp *dispatch.Dispatcher
}

func NewCacheToggleController(ctx context.Context, cfg *config.Config, disp *dispatch.Dispatcher) *CacheToggleController {
	return &CacheToggleController{ctx: ctx, cfg: cfg, disp: disp}
}

func (c *CacheToggleController) Toggle(r *fasthttp.RequestCtx) {
	var req toggleRequest
	if err := json.Unmarshal(r.PostBody(), &req); err != nil {
		respondBadRequest(err, r)
		return
	}

	wasEnabled := c.cfg.CacheEnabled
	c.cfg.CacheEnabled = req.Enabled
	log.Info().Bool("enabled", req.Enabled).Msg("[cache-toggle] page caching setting changed")

	resp := &toggleResponse{Success: true, CacheEnabled: req.Enabled}
	if wasEnabled && !req.Enabled {
		c.disp.ResetPurgeAllGuard()
		ok, detail := c.disp.PurgeAll(c.ctx)
		if !ok {
			resp.Success = false
			resp.Message = detail
			r.SetStatusCode(fasthttp.StatusUnprocessableEntity)
		} else {
			resp.Message = dispatch.SubmittedMessage
		}
	}
	respondJSON(resp, r)
}

func (c *CacheToggleController) AddRoute(router *router.Router) {
	router.PATCH(CacheTogglePath, c.Toggle)
}
