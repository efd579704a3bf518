package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/eligibility"
	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/prometheus/metrics"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

// DecisionPath answers the front proxy: may this request be cached, and with
// which headers.
const DecisionPath = "/api/v2/decision"

type DecisionController struct {
	ctx    context.Context
	engine *eligibility.Engine
	meter  metrics.Meter
}

func NewDecisionController(ctx context.Context, engine *eligibility.Engine, meter metrics.Meter) *DecisionController {
	return &DecisionController{ctx: ctx, engine: engine, meter: meter}
}

func (c *DecisionController) Decide(r *fasthttp.RequestCtx) {
	rawURL := string(r.QueryArgs().Peek("url"))
	if rawURL == "" {
		respondBadRequest(errors.New("url query parameter is required"), r)
		return
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		respondBadRequest(fmt.Errorf("parse url: %w", err), r)
		return
	}

	req := &eligibility.RequestContext{
		Path:          u.Path,
		Query:         u.RawQuery,
		RequestedWith: string(r.QueryArgs().Peek("requested_with")),
		Cron:          r.QueryArgs().GetBool("cron"),
	}

	// The page snapshot is resolved WordPress-side and travels in the body.
	page := &eligibility.PageContext{}
	if body := r.PostBody(); len(body) > 0 {
		if err = json.Unmarshal(body, page); err != nil {
			respondBadRequest(fmt.Errorf("decode page context: %w", err), r)
			return
		}
	}

	decision := c.engine.Decide(c.ctx, req, page)
	if c.meter != nil {
		c.meter.IncEligibility(string(decision.State))
	}
	respondJSON(decision, r)
}

func (c *DecisionController) AddRoute(router *router.Router) {
	router.GET(DecisionPath, c.Decide)
	router.POST(DecisionPath, c.Decide)
}
