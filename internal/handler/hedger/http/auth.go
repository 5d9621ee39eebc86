package http

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/krobus00/meta-exchange/internal/config"
)

var (
	errAPIKeyMissing  = errors.New("api key is required")
	errAPIKeyInvalid  = errors.New("invalid api key")
	errAPIKeyInactive = errors.New("api key is inactive")
	errAPIKeyExpired  = errors.New("api key is expired")
)

type deskContextKey struct{}

// Every configured api key belongs to one trading desk, named after the key.
func deskFromContext(ctx context.Context) string {
	desk, _ := ctx.Value(deskContextKey{}).(string)
	return desk
}

// withDesk serves next only for method and a known desk key. The key is read
// from X-API-Key or, for websocket clients that cannot set headers, api_key.
func (h *Handler) withDesk(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
			return
		}

		r, ok := authenticateDesk(w, r, "")
		if !ok {
			return
		}

		next(w, r)
	}
}

// authenticateDesk falls back to bodyKey when neither the header nor the
// query carries a key.
func authenticateDesk(w http.ResponseWriter, r *http.Request, bodyKey string) (*http.Request, bool) {
	key := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if key == "" {
		key = strings.TrimSpace(r.URL.Query().Get("api_key"))
	}
	if key == "" {
		key = strings.TrimSpace(bodyKey)
	}

	desk, err := deskForKey(key, time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": err.Error()})
		return r, false
	}

	return r.WithContext(context.WithValue(r.Context(), deskContextKey{}, desk)), true
}

func deskForKey(key string, now time.Time) (string, error) {
	if key == "" {
		return "", errAPIKeyMissing
	}
	if config.Env == nil {
		return "", errAPIKeyInvalid
	}

	for _, desk := range config.Env.APIKeys {
		stored := strings.TrimSpace(desk.Key)
		if stored == "" || subtle.ConstantTimeCompare([]byte(key), []byte(stored)) != 1 {
			continue
		}

		if !desk.Active {
			return "", errAPIKeyInactive
		}

		expiry, err := keyExpiry(desk.ExpiredAt)
		if err != nil {
			return "", errAPIKeyInvalid
		}
		if !expiry.IsZero() && !now.Before(expiry) {
			return "", errAPIKeyExpired
		}

		return desk.Name, nil
	}

	return "", errAPIKeyInvalid
}

// keyExpiry returns the zero time for a key that never expires. A date
// without a time keeps the key valid through the end of that day.
func keyExpiry(value any) (time.Time, error) {
	var raw string
	switch v := value.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v.UTC(), nil
	case string:
		raw = strings.TrimSpace(v)
	default:
		return time.Time{}, errors.New("unsupported expiry type")
	}

	if raw == "" {
		return time.Time{}, nil
	}
	if expiry, err := time.Parse(time.RFC3339, raw); err == nil {
		return expiry.UTC(), nil
	}

	day, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, err
	}

	return day.AddDate(0, 0, 1), nil
}
