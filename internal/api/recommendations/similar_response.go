package api

import "github.com/williammiras/dash/internal/models"

type SimilarResponseContent struct {
	Query  string           `json:"query"`
	Result models.DataQuery `json:"result"`
}

type SimilarResponse struct {
	Responses []SimilarResponseContent `json:"responses"`
}
