package api

import "net/http"

// NewRouter wires the evidence pipeline's HTTP surface onto p, plus
// request-ID and rate-limit middleware. The webhook shell (auth, TLS) is
// out of scope — a deployment fronts this mux with whatever terminates
// those concerns.
func NewRouter(p *Pipeline) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/vcp/event", p.HandleEvent)
	mux.HandleFunc("/vcp/events", p.HandleListEvents)
	mux.HandleFunc("/vcp/verify/", p.HandleVerifyEvent)
	mux.HandleFunc("/vcp/proof/", p.HandleProof)
	mux.HandleFunc("/vcp/anchor/force", p.HandleAnchorForce)
	mux.HandleFunc("/vcp/anchor/status", p.HandleAnchorStatus)
	mux.HandleFunc("/vcp/keys", p.HandleKeys)
	mux.HandleFunc("/health", p.HandleHealth)

	limiter := newRateLimiter(50, 100)
	return requestIDMiddleware(limiter.middleware(mux))
}
