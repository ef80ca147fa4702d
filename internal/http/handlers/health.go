package handlers

import (
	"fmt"
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{
		"status":          "ok",
		"approval_policy": fmt.Sprint(a.Service.Policy()),
	})
}
