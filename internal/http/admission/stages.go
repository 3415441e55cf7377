package admission

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/rogerio-castellano/product-catalog/internal/decision"
	"go.uber.org/zap"
)

const DefaultMaxBodyBytes = 1 << 20

// TestToolSignature is the User-Agent fragment that skips rate limiting outside production.
const TestToolSignature = "PostmanRuntime"

type errorBody struct {
	Error string `json:"error"`
}

// BodyParser buffers the body so later readers can replay it, and rejects malformed JSON.
func BodyParser(maxBytes int64) Stage {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	return StageFunc("body-parser", func(ex *Exchange) Outcome {
		r := ex.Request
		if r.Body == nil || r.Body == http.NoBody {
			return Next()
		}

		data, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
		r.Body.Close()
		if err != nil {
			return Respond(http.StatusBadRequest, errorBody{Error: "could not read request body"})
		}
		if int64(len(data)) > maxBytes {
			return Respond(http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large"})
		}

		if isJSON(r.Header.Get("Content-Type")) && len(bytes.TrimSpace(data)) > 0 && !json.Valid(data) {
			return Respond(http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		}

		r2 := r.Clone(r.Context())
		r2.Body = io.NopCloser(bytes.NewReader(data))
		r2.ContentLength = int64(len(data))
		ex.Request = r2
		return Next()
	})
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// CORS allows any origin. Preflight requests are answered here.
func CORS() Stage {
	return StageFunc("cors", func(ex *Exchange) Outcome {
		h := ex.Header()
		h.Set("Access-Control-Allow-Origin", "*")

		if ex.Request.Method != http.MethodOptions {
			return Next()
		}

		h.Set("Access-Control-Allow-Methods", "GET,HEAD,PUT,PATCH,POST,DELETE")
		if reqHeaders := ex.Request.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			h.Set("Access-Control-Allow-Headers", reqHeaders)
			h.Add("Vary", "Access-Control-Request-Headers")
		}
		h.Set("Content-Length", "0")
		return Respond(http.StatusNoContent, nil)
	})
}

var securityHeaders = [][2]string{
	{"Cross-Origin-Opener-Policy", "same-origin"},
	{"Cross-Origin-Resource-Policy", "same-origin"},
	{"Origin-Agent-Cluster", "?1"},
	{"Referrer-Policy", "no-referrer"},
	{"Strict-Transport-Security", "max-age=31536000; includeSubDomains"},
	{"X-Content-Type-Options", "nosniff"},
	{"X-DNS-Prefetch-Control", "off"},
	{"X-Download-Options", "noopen"},
	{"X-Frame-Options", "SAMEORIGIN"},
	{"X-Permitted-Cross-Domain-Policies", "none"},
	{"X-XSS-Protection", "0"},
}

// SecurityHeaders sets the hardening headers. No Content-Security-Policy is sent.
func SecurityHeaders() Stage {
	return StageFunc("security-headers", func(ex *Exchange) Outcome {
		h := ex.Header()
		for _, kv := range securityHeaders {
			h.Set(kv[0], kv[1])
		}
		h.Del("X-Powered-By")
		return Next()
	})
}

// AccessLog logs one line per request once it completes. client is the
// address proxies vouch for; peer is the TCP remote.
func AccessLog(logger *zap.Logger, proxies decision.TrustedProxies) Stage {
	return StageFunc("access-log", func(ex *Exchange) Outcome {
		ex.OnComplete(func(ex *Exchange, c Completion) {
			logger.Info("request",
				zap.String("method", ex.Request.Method),
				zap.String("path", ex.Request.URL.Path),
				zap.Int("status", c.Status),
				zap.Duration("latency", c.Duration),
				zap.Int("bytes", c.Bytes),
				zap.String("client", proxies.ClientIP(ex.Request)),
				zap.String("peer", decision.PeerIP(ex.Request)),
			)
		})
		return Next()
	})
}

type RateLimitOptions struct {
	Protector  decision.Protector
	Production bool
	// BypassSignature defaults to TestToolSignature; it is ignored in production.
	BypassSignature string
	Logger          *zap.Logger
}

// RateLimit consults the decision service at a cost of one unit per request.
func RateLimit(opts RateLimitOptions) Stage {
	if opts.BypassSignature == "" {
		opts.BypassSignature = TestToolSignature
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return StageFunc("rate-limit", func(ex *Exchange) Outcome {
		r := ex.Request
		if !opts.Production && strings.Contains(r.UserAgent(), opts.BypassSignature) {
			return Next()
		}

		dec, err := opts.Protector.Protect(r.Context(), r, 1)
		if err != nil {
			return Fail(err)
		}

		if dec.IsDenied() {
			opts.Logger.Info("request denied",
				zap.String("decision_id", dec.ID),
				zap.String("reason", string(dec.Reason.Kind)),
				zap.String("path", r.URL.Path),
			)
			switch {
			case dec.Reason.IsRateLimit():
				if dec.Reason.ResetSeconds > 0 {
					ex.Header().Set("Retry-After", strconv.Itoa(dec.Reason.ResetSeconds))
				}
				return Respond(http.StatusTooManyRequests, errorBody{Error: "Too Many Requests"})
			case dec.Reason.IsBot():
				return Respond(http.StatusForbidden, errorBody{Error: "Bot access denied"})
			default:
				return Respond(http.StatusForbidden, errorBody{Error: "Forbidden"})
			}
		}

		if dec.HasSpoofedBot() {
			opts.Logger.Info("spoofed bot", zap.String("decision_id", dec.ID), zap.String("path", r.URL.Path))
			return Respond(http.StatusForbidden, errorBody{Error: "Spoofed bot detected"})
		}

		return Next()
	})
}

// Standard builds the stage list in the order every request goes through.
func Standard(logger *zap.Logger, proxies decision.TrustedProxies, rl RateLimitOptions) []Stage {
	if rl.Logger == nil {
		rl.Logger = logger
	}
	return []Stage{
		BodyParser(DefaultMaxBodyBytes),
		CORS(),
		SecurityHeaders(),
		AccessLog(logger, proxies),
		RateLimit(rl),
	}
}
