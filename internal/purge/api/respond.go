package api

import (
	"bytes"
	"encoding/json"

	serverutils "github.com/Borislavv/wordpress-cdn-cache-plugin/pkg/server/utils"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

// Predefined HTTP response templates for error handling (400/503)
var (
	badRequestResponseBytes = []byte(`{
	  "status": 400,
	  "error": "Bad Request",
	  "message": "` + string(messagePlaceholder) + `"
	}`)
	serviceUnavailableResponseBytes = []byte(`{
	  "status": 503,
	  "error": "Service Unavailable",
	  "message": "` + string(messagePlaceholder) + `"
	}`)
	messagePlaceholder = []byte("${message}")
)

func respondBadRequest(err error, ctx *fasthttp.RequestCtx) {
	log.Err(err).Msg("[api] bad request: " + err.Error()) // Don't move it down due to error will be rewritten.

	ctx.SetStatusCode(fasthttp.StatusBadRequest)
	if _, err = serverutils.Write(resolveMessagePlaceholder(badRequestResponseBytes, err), ctx); err != nil {
		log.Err(err).Msg("failed to write into *fasthttp.RequestCtx")
	}
}

func respondUnavailable(err error, ctx *fasthttp.RequestCtx) {
	log.Error().Err(err).Msg("[api] handle request error: " + err.Error()) // Don't move it down due to error will be rewritten.

	ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	if _, err = serverutils.Write(resolveMessagePlaceholder(serviceUnavailableResponseBytes, err), ctx); err != nil {
		log.Err(err).Msg("failed to write into *fasthttp.RequestCtx")
	}
}

func respondJSON(v any, ctx *fasthttp.RequestCtx) {
	b, err := json.Marshal(v)
	if err != nil {
		respondUnavailable(err, ctx)
		return
	}
	if _, err = serverutils.Write(b, ctx); err != nil {
		log.Err(err).Msg("failed to write into *fasthttp.RequestCtx")
	}
}

// resolveMessagePlaceholder substitutes ${message} in template with escaped error message.
func resolveMessagePlaceholder(msg []byte, err error) []byte {
	escaped, _ := json.Marshal(err.Error())
	return bytes.ReplaceAll(msg, messagePlaceholder, escaped[1:len(escaped)-1])
}
