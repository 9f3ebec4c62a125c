package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/hugh/evently/internal/api/dto"
	"github.com/hugh/evently/internal/api/middleware"
)

// Options carries settings shared by the handlers.
type Options struct {
	Logger        *slog.Logger
	Development   bool          // echo error details in 500 responses
	SessionTTL    time.Duration // session cookie lifetime
	SecureCookies bool
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// serverError logs err and writes a 500, including err only in development.
func (o Options) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	o.logger().Error(msg, "error", err, "request_id", middleware.GetRequestID(r.Context()))

	resp := dto.ErrorResponse{Error: msg}
	if o.Development {
		resp.Details = map[string]string{"cause": err.Error()}
	}
	writeJSON(w, http.StatusInternalServerError, resp)
}

func (o Options) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(o.SessionTTL.Seconds()),
	})
}

func (o Options) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   o.SecureCookies,
		MaxAge:   -1,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v)
}
