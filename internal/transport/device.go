package transport

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// DeviceCookie names the cookie that selects a browser's storage namespace.
const DeviceCookie = "study_device"

const deviceCookieMaxAge = 90 * 24 * time.Hour

type deviceKey struct{}

// DeviceFromContext returns the device id from context, if present.
func DeviceFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(deviceKey{}).(string)
	return id, ok && id != ""
}

// DeviceMiddleware reads the device cookie and issues one when it is missing
// or malformed.
func DeviceMiddleware(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var deviceID string
			if c, err := r.Cookie(DeviceCookie); err == nil {
				if _, perr := uuid.Parse(c.Value); perr == nil {
					deviceID = c.Value
				}
			}
			if deviceID == "" {
				deviceID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     DeviceCookie,
					Value:    deviceID,
					Path:     "/",
					MaxAge:   int(deviceCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx := context.WithValue(r.Context(), deviceKey{}, deviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
