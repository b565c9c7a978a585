package errs

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ResponseBody is the JSON shape of every error answer.
type ResponseBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Write answers with the status and JSON body that err maps to.
func Write(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(HTTPStatus(err))
	body := ResponseBody{
		Code:    Code(err),
		Message: PublicMessage(err),
	}
	if encErr := json.NewEncoder(w).Encode(body); encErr != nil {
		log.Error().Err(encErr).Str("code", body.Code).Msg("Failed to encode error response")
	}
}
