//go:build integration
// +build integration

package testhelpers

import (
	"encoding/json"
	"net/http"
	"strconv"
)

func writeJSON(w http.ResponseWriter, v interface{}) {
	_ = json.NewEncoder(w).Encode(v)
}

func parseCoord(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
