package api

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/dispatch"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

// ClearCachePath accepts manual purge requests from the plugin admin UI.
const ClearCachePath = "/api/v2/clear-cache"

type clearCacheRequest struct {
	// Type selects the purge shape: all, post_ids or urls.
	Type    string   `json:"type"`
	PostIDs []int    `json:"post_ids,omitempty"`
	URLs    []string `json:"urls,omitempty"`
}

type clearCacheResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Breakdown   *dispatch.Breakdown `json:"breakdown,omitempty"`
	InvalidURLs []string            `json:"invalid_urls,omitempty"`
}

type ClearCacheController struct {
	ctx   context.Context
	admin *dispatch.Admin
	disp  *dispatch.Dispatcher
}

func NewClearCacheController(ctx context.Context, admin *dispatch.Admin, disp *dispatch.Dispatcher) *ClearCacheController {
	return &ClearCacheController{ctx: ctx, admin: admin, disp: disp}
}

func (c *ClearCacheController) Clear(r *fasthttp.RequestCtx) {
	var req clearCacheRequest
	if err := json.Unmarshal(r.PostBody(), &req); err != nil {
		respondBadRequest(err, r)
		return
	}

	// Each admin request is one logical invocation of the purge pipeline.
	c.disp.ResetPurgeAllGuard()

	resp := &clearCacheResponse{}
	switch req.Type {
	case "all":
		resp.Success, resp.Message = c.disp.PurgeAll(c.ctx)
		if resp.Success {
			resp.Message = dispatch.SubmittedMessage
		}
	case "post_ids":
		if len(req.PostIDs) == 0 {
			respondBadRequest(errors.New("post_ids must not be empty"), r)
			return
		}
		var detail string
		resp.Breakdown, resp.Success, detail = c.admin.PurgeEntities(c.ctx, req.PostIDs)
		resp.Message = detail
		if resp.Success {
			resp.Message = dispatch.SubmittedMessage
		}
	case "urls":
		if len(req.URLs) == 0 {
			respondBadRequest(errors.New("urls must not be empty"), r)
			return
		}
		var detail string
		resp.InvalidURLs, resp.Success, detail = c.admin.PurgeURLs(c.ctx, req.URLs)
		resp.Message = detail
		if resp.Success {
			resp.Message = dispatch.SubmittedMessage
		}
	default:
		respondBadRequest(errors.New("type must be one of: all, post_ids, urls"), r)
		return
	}

	if !resp.Success {
		r.SetStatusCode(fasthttp.StatusUnprocessableEntity)
	}
	respondJSON(resp, r)
}

func (c *ClearCacheController) AddRoute(router *router.Router) {
	router.PATCH(ClearCachePath, c.Clear)
}
