package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/ansuz/internal/models"
	"github.com/starford/ansuz/internal/queryservice"
)

// QueryRequest is the body of POST /api/query.
type QueryRequest struct {
	Query string `json:"query" example:"TABLE status FROM \"projects\" SORT file.name"`
}

// Validate checks the request.
func (r QueryRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Query, validation.Required, validation.Length(1, 64<<10)),
	)
}

// IndexStatus is returned by GET /api/index and POST /api/index/rebuild.
type IndexStatus = queryservice.Status

// LinksResponse describes the link neighbourhood of one note.
type LinksResponse struct {
	Path string `json:"path"`
	models.Links
}
