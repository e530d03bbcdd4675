package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/munistream/auth-gateway/utils"
)

// decodeJSON decodes and validates a JSON request body
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		var validationErr *utils.ValidationError
		if errors.As(err, &validationErr) {
			_ = utils.WriteBadRequest(w, validationErr.Message, validationErr.Details())
		} else {
			_ = utils.WriteBadRequest(w, err.Error(), nil)
		}
		return false
	}
	return true
}
