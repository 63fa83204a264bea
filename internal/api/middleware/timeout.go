// SPDX-License-Identifier: MIT

package middleware

import (
	"context"
	"net/http"
	"time"
)

// Timeout bounds the context of every request. Handlers must honor the
// context; background work started by a handler must not inherit it.
func Timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
