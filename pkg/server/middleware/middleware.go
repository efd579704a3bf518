package middleware

import (
	"github.com/valyala/fasthttp"
)

// HttpMiddleware wraps a request handler; middlewares are applied in reverse
// order so the first one in the slice runs first.
type HttpMiddleware interface {
	Middleware(next fasthttp.RequestHandler) fasthttp.RequestHandler
}
