package middleware

import (
	"context"

	"github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/config"
	fasthttpconfig "github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/server/config"
	"github.com/valyala/fasthttp"
)

// The admin API answers must never be cached by an intermediary.
const apiNoStoreValue = "no-store, no-cache, must-revalidate, max-age=0"

type WatermarkMiddleware struct {
	ctx    context.Context
	config fasthttpconfig.Configurator
}

func NewWatermarkMiddleware(ctx context.Context, config fasthttpconfig.Configurator) *WatermarkMiddleware {
	return &WatermarkMiddleware{ctx: ctx, config: config}
}

func (m *WatermarkMiddleware) Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		ctx.Response.Header.Add("X-Server-Name", m.config.GetHttpServerName())
		ctx.Response.Header.Add("X-BigScoots-Cache-Plugin", config.Version)
		ctx.Response.Header.Set("Cache-Control", apiNoStoreValue)

		next(ctx)
	}
}
