package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rogerio-castellano/product-catalog/internal/decision"
	"github.com/rogerio-castellano/product-catalog/internal/http/handlers"
	"go.uber.org/zap"
)

// errorResponder answers requests whose admission failed: JSON under /api, plain text elsewhere.
func errorResponder(logger *zap.Logger) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		logger.Error("request admission failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Bool("decision_unavailable", errors.Is(err, decision.ErrUnavailable)),
			zap.Error(err),
		)

		if isAPIPath(r.URL.Path) {
			handlers.WriteError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func isAPIPath(p string) bool {
	return p == APIPrefix || strings.HasPrefix(p, APIPrefix+"/")
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
