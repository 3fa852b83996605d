package trace

import "net/http"

// Middleware continues the caller's trace, or starts one, for each request
// and echoes the trace id back in the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := extract(r.Header.Get)
		w.Header().Set(TraceIDKey, tc.TraceID)
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), tc)))
	})
}

// Transport propagates trace context on outgoing HTTP requests.
type Transport struct {
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	tc, ok := FromContext(r.Context())
	if !ok {
		return base.RoundTrip(r)
	}
	r = r.Clone(r.Context())
	inject(tc, r.Header.Set)
	return base.RoundTrip(r)
}
