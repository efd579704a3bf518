package serverutils

import (
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

// Write writes the payload and logs a short-write once instead of making
// every controller repeat the check.
func Write(b []byte, ctx *fasthttp.RequestCtx) (int, error) {
	n, err := ctx.Write(b)
	if err == nil && n != len(b) {
		log.Warn().Msgf("[server] short write: %d of %d bytes", n, len(b))
	}
	return n, err
}
