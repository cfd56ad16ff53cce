package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

func getValidator() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInst = validator.New()
	})
	return validatorInst
}

// decodeAndValidate reads a JSON body into dst and runs struct-tag
// validation over it. On failure it writes the 400 response itself and
// returns false.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, ErrPayload{status: http.StatusBadRequest, code: "invalid_body", message: "malformed JSON body"})
		return false
	}
	if err := getValidator().Struct(dst); err != nil {
		var fields []string
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field())+":"+fe.Tag())
			}
		}
		writeError(w, r, ErrPayload{
			status:  http.StatusBadRequest,
			code:    "validation_failed",
			message: "validation failed: " + strings.Join(fields, ", "),
		})
		return false
	}
	return true
}
