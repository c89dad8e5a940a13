package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/runoshun/issue-crew/internal/domain"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// createRequest is the POST body. An omitted or null priority means medium.
type createRequest struct {
	Priority    *domain.Priority `json:"priority"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
}

func (c createRequest) toNewIssue() domain.NewIssue {
	priority := domain.DefaultPriority
	if c.Priority != nil {
		priority = *c.Priority
	}
	return domain.NewIssue{
		Title:       c.Title,
		Description: c.Description,
		Priority:    priority,
	}
}

// updateRequest is the PUT body. Omitted and null fields are left unchanged.
type updateRequest struct {
	Title       *string          `json:"title"`
	Description *string          `json:"description"`
	Priority    *domain.Priority `json:"priority"`
	Status      *domain.Status   `json:"status"`
}

func (u updateRequest) toPatch() domain.IssuePatch {
	return domain.IssuePatch{
		Title:       u.Title,
		Description: u.Description,
		Priority:    u.Priority,
		Status:      u.Status,
	}
}

// decodeBody decodes a single JSON object into dst. On failure it writes the
// error response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = errors.New("body must contain a single JSON object")
	}
	if err == nil {
		return true
	}

	var (
		typeErr *json.UnmarshalTypeError
		sizeErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &typeErr):
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("field %q must be a %s", typeErr.Field, typeErr.Type))
	case errors.As(err, &sizeErr):
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", sizeErr.Limit))
	case errors.Is(err, io.EOF):
		writeError(w, http.StatusBadRequest, "request body is empty")
	default:
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
	}
	return false
}
