package validators

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/alo17/ilan-backend/pkg/errors"
	"github.com/alo17/ilan-backend/pkg/pagination"
)

// ParseQueryInt reads an optional integer parameter bounded by [min, max]. Details use
// the same field -> message shape as body validation.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, queryError(key, "must be numeric")
	}
	if value < min || value > max {
		return 0, queryError(key, fmt.Sprintf("must be between %d and %d", min, max))
	}
	return value, nil
}

// ParsePage reads the limit and cursor parameters shared by every paged endpoint.
// The cursor stays opaque here; the service decodes it.
func ParsePage(r *http.Request) (pagination.Params, error) {
	limit, err := ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func queryError(key, msg string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, key+" "+msg).
		WithDetails(map[string]string{key: msg})
}
