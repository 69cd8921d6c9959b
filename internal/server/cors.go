package server

import "net/http"

const corsAllowedMethods = "GET,HEAD,PUT,PATCH,POST,DELETE"

// withCORS answers preflight requests and tags responses to allowed origins
// with the headers browsers need for credentialed cross-origin calls.
func (a *API) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		allowed := origin != "" && a.origins.allows(origin)

		if allowed {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", corsAllowedMethods)
			h.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			if allowed {
				if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
					w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
				}
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
