package middlewares

import (
	"errors"
	"net/http"
	"net/url"
)

// SessionCookie is the backend's opaque session cookie. The console never
// reads its contents, it only checks presence and forwards it.
const SessionCookie = "osca_session"

// RequireSession gates the staff pages: without a backend session cookie the
// caller is sent to the login page, with a goto parameter pointing back.
// The backend itself re-validates the cookie on every forwarded call.
func RequireSession(loginUrl string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, err := r.Cookie(SessionCookie)
			if err != nil {
				if !errors.Is(err, http.ErrNoCookie) {
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
				location := loginUrl + "?goto=" + url.QueryEscape(r.RequestURI)
				w.Header().Set("location", location)
				w.WriteHeader(http.StatusTemporaryRedirect)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
