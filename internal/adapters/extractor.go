// Package adapters provides framework-aware fingerprint extraction for HTTP
// middleware. Each supported framework gets an explicit builder rather than
// a single extractor that probes request objects at runtime for attributes
// it hopes exist.
package adapters

import "net/http"

// Extractor derives a rate-limiting fingerprint from an inbound request. A
// false second return means no usable identity was found and the caller
// should fall back to a default fingerprint or deny the request, at its
// own discretion.
type Extractor interface {
	ExtractKey(r *http.Request) (string, bool)
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(r *http.Request) (string, bool)

// ExtractKey implements Extractor.
func (f ExtractorFunc) ExtractKey(r *http.Request) (string, bool) {
	return f(r)
}

// RemoteAddrExtractor derives a fingerprint from the request's remote
// address, ignoring any forwarding headers. Use ChainExtractors with a
// proxy-aware extractor first when running behind a load balancer.
var RemoteAddrExtractor Extractor = ExtractorFunc(func(r *http.Request) (string, bool) {
	if r.RemoteAddr == "" {
		return "", false
	}
	return "ip:" + r.RemoteAddr, true
})

// HeaderExtractor builds an Extractor reading a fixed request header, e.g.
// an API key or a gateway-assigned client ID.
func HeaderExtractor(header string) Extractor {
	return ExtractorFunc(func(r *http.Request) (string, bool) {
		v := r.Header.Get(header)
		if v == "" {
			return "", false
		}
		return "hdr:" + header + ":" + v, true
	})
}

// ChainExtractors tries each extractor in order, returning the first hit.
func ChainExtractors(extractors ...Extractor) Extractor {
	return ExtractorFunc(func(r *http.Request) (string, bool) {
		for _, e := range extractors {
			if key, ok := e.ExtractKey(r); ok {
				return key, true
			}
		}
		return "", false
	})
}
