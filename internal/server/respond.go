package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/pefman/rose-manor/internal/engine"
	"github.com/pefman/rose-manor/internal/explore"
	"github.com/pefman/rose-manor/internal/logging"
	"github.com/pefman/rose-manor/internal/store"
)

// Error codes carried in error bodies so clients can rebuild the sentinel.
const (
	CodeNotFound                = "not_found"
	CodeExists                  = "already_exists"
	CodeInvalidRequest          = "invalid_request"
	CodeInvalidCombatStart      = "invalid_combat_start"
	CodeCombatAlreadyInProgress = "combat_already_in_progress"
	CodeNotYourTurn             = "not_your_turn"
	CodeInsufficientResource    = "insufficient_resource"
	CodeInvalidAction           = "invalid_action"
	CodeSurrenderNotConfirmed   = "surrender_not_confirmed"
	CodeCannotExplore           = "cannot_explore"
	CodeUnauthorized            = "unauthorized"
	CodeInternal                = "internal"
)

var errBadRequest = errors.New("bad request")

const maxBodyBytes = 1 << 20

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, code int, kind, msg string) {
	writeJSON(w, code, ErrorBody{
		Error:   http.StatusText(code),
		Code:    kind,
		Message: msg,
		Status:  code,
	})
}

// writeErr maps err onto a status and code. Order matters: the most specific
// sentinel wins when an error wraps several.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := classify(err)
	if code == http.StatusInternalServerError {
		logging.Error("request failed", err, logging.Fields{"method": r.Method, "path": r.URL.Path})
	}
	writeError(w, code, kind, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, engine.ErrInsufficientResource):
		return http.StatusPaymentRequired, CodeInsufficientResource
	case errors.Is(err, engine.ErrCombatAlreadyInProgress):
		return http.StatusConflict, CodeCombatAlreadyInProgress
	case errors.Is(err, engine.ErrInvalidCombatStart):
		return http.StatusBadRequest, CodeInvalidCombatStart
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, store.ErrExists):
		return http.StatusConflict, CodeExists
	case errors.Is(err, engine.ErrNotYourTurn):
		return http.StatusConflict, CodeNotYourTurn
	case errors.Is(err, engine.ErrSurrenderNotConfirmed):
		return http.StatusBadRequest, CodeSurrenderNotConfirmed
	case errors.Is(err, engine.ErrInvalidAction):
		return http.StatusBadRequest, CodeInvalidAction
	case errors.Is(err, explore.ErrCannotExplore):
		return http.StatusBadRequest, CodeCannotExplore
	}
	return http.StatusInternalServerError, CodeInternal
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errBadRequest)
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func withCORS(origin string, next http.Handler) http.Handler {
	if origin == "" {
		origin = "*"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Token")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
