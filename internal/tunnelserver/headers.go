package tunnelserver

import "net/http"

// hopByHop lists the headers stripped from responses written to the public
// caller (spec.md §4.3 "Response handling", §8 "Public HTTP"). Matched
// case-insensitively via http.Header's canonical form.
var hopByHop = []string{"Transfer-Encoding", "Connection", "Keep-Alive"}

// headersFromFrame turns a RESP_START's single-valued header map into an
// http.Header, stripping hop-by-hop fields before the caller writes them to
// the hijacked response.
func headersFromFrame(m map[string]string) http.Header {
	h := make(http.Header, len(m))
	for k, v := range m {
		h.Set(k, v)
	}
	for _, hh := range hopByHop {
		h.Del(hh)
	}
	return h
}

// headersToFrame flattens an inbound public request's headers into the
// single-valued string map OPEN_STREAM carries. Multi-valued headers are
// joined with ", ", matching the teacher's single-valued header map
// convention (spec.md §9 "Header maps").
func headersToFrame(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) == 0 {
			continue
		}
		val := v[0]
		for _, extra := range v[1:] {
			val += ", " + extra
		}
		out[k] = val
	}
	return out
}
