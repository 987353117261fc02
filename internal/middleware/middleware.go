// Package middleware contains http middlewares.
package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/sirupsen/logrus"
	"github.com/tomasen/realip"
)

var log = logrus.WithField("layer", "http")

// Logger logs every request with its status, duration, client's ip and request id.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			l := log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"ip":         realip.FromRequest(r),
				"method":     r.Method,
				"uri":        r.RequestURI,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
			})

			if ww.Status() >= http.StatusInternalServerError {
				l.Warn("request served")
				return
			}

			l.Debug("request served")
		}()

		next.ServeHTTP(ww, r)
	})
}

// BodyLimiter limits size of request body.
func BodyLimiter(size int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, size)
			next.ServeHTTP(w, r)
		})
	}
}
