// Package common provides shared HTTP utility functions for API handlers.
package common

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
)

// GetIDURLParam parses a chi URL parameter holding a positive numeric asteroid id.
// chi has already unescaped the path, so encoded whitespace surfaces here.
func GetIDURLParam(r *http.Request, paramName string) (int64, error) {
	raw := chi.URLParam(r, paramName)
	if strings.TrimSpace(raw) == "" {
		return 0, fmt.Errorf("%s cannot be empty", paramName)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", paramName)
	}
	return id, nil
}
