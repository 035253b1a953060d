package middleware

import (
	"net/http"
	"time"
)

// Timeout caps how long an auth flow may run. Bcrypt and the OAuth code
// exchange are the slow paths; anything beyond the cap answers with the
// standard envelope, pre-rendered because TimeoutHandler writes it verbatim.
func Timeout(limit time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		limit = 15 * time.Second
	}

	const body = `{"success":false,"error":{"code":"REQUEST_TIMEOUT","message":"the request took too long to complete"}}`

	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, limit, body)
	}
}
