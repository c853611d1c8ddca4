package handlers

import (
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/fogroute/internal/domain"
	"github.com/MrSnakeDoc/fogroute/internal/httpserver/deps"
	"github.com/MrSnakeDoc/fogroute/internal/orchestrator"
)

// flexBool accepts true/false as JSON booleans, numbers or strings.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch strings.ToLower(strings.Trim(string(data), `"`)) {
	case "true", "1":
		*b = true
	case "false", "0", "", "null":
		*b = false
	default:
		return domain.Validation("invalid boolean %s", data)
	}
	return nil
}

// CreateRoute handles POST /api/v2/authoring/element/instance/route/create.
func CreateRoute(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orchestrator.CreateRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeFailure(w, r, d, err)
			return
		}

		res, err := d.Routes.CreateRoute(r.Context(), req)
		if err != nil {
			writeFailure(w, r, d, err)
			return
		}
		writeOK(w, d, "route", res)
	}
}

// DeleteRoute handles POST /api/v2/authoring/element/instance/route/delete.
func DeleteRoute(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			orchestrator.DeleteRequest
			IsNetworkConnection flexBool `json:"isNetworkConnection"`
		}
		if err := decodeBody(w, r, &payload); err != nil {
			writeFailure(w, r, d, err)
			return
		}
		req := payload.DeleteRequest
		req.IsNetworkConnection = bool(payload.IsNetworkConnection)

		res, err := d.Routes.DeleteRoute(r.Context(), req)
		if err != nil {
			writeFailure(w, r, d, err)
			return
		}
		writeOK(w, d, "route", res)
	}
}
