package secretclient

import (
	"encoding/json"
	"net/http"
)

func decodeJSON(r *http.Request, out any) {
	_ = json.NewDecoder(r.Body).Decode(out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
