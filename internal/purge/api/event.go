package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/events"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

// EventPath ingests WordPress hook firings mapped to typed mutation events.
const EventPath = "/api/v2/event"

type EventController struct {
	ctx     context.Context
	handler *events.Handler
}

func NewEventController(ctx context.Context, handler *events.Handler) *EventController {
	return &EventController{ctx: ctx, handler: handler}
}

func (c *EventController) Ingest(r *fasthttp.RequestCtx) {
	ev, err := decodeEvent(r.PostBody())
	if err != nil {
		respondBadRequest(err, r)
		return
	}

	out := c.handler.Handle(c.ctx, ev)
	respondJSON(out, r)
}

func decodeEvent(body []byte) (events.Event, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}

	var ev events.Event
	switch head.Kind {
	case events.EntitySaved{}.Kind():
		ev = &events.EntitySaved{}
	case events.EntityStatusChanged{}.Kind():
		ev = &events.EntityStatusChanged{}
	case events.CommentStatusChanged{}.Kind():
		ev = &events.CommentStatusChanged{}
	case events.CommentDeleted{}.Kind():
		ev = &events.CommentDeleted{}
	case events.ThemeChanged{}.Kind():
		return events.ThemeChanged{}, nil
	case events.OrderStatusChanged{}.Kind():
		ev = &events.OrderStatusChanged{}
	case events.UpgraderCompleted{}.Kind():
		return events.UpgraderCompleted{}, nil
	case events.URLsRefreshed{}.Kind():
		ev = &events.URLsRefreshed{}
	default:
		return nil, fmt.Errorf("unknown event kind %q", head.Kind)
	}

	if err := json.Unmarshal(body, ev); err != nil {
		return nil, fmt.Errorf("decode %s event: %w", head.Kind, err)
	}

	switch e := ev.(type) {
	case *events.EntitySaved:
		return *e, nil
	case *events.EntityStatusChanged:
		return *e, nil
	case *events.CommentStatusChanged:
		return *e, nil
	case *events.CommentDeleted:
		return *e, nil
	case *events.OrderStatusChanged:
		return *e, nil
	case *events.URLsRefreshed:
		return *e, nil
	}
	return ev, nil
}

func (c *EventController) AddRoute(router *router.Router) {
	router.POST(EventPath, c.Ingest)
}
