package api

import (
	"net/http"

	"pantry/internal/services"
)

func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request) {
	if s.recipes == nil {
		s.writeServiceError(w, r, services.Wrap(services.ErrConfiguration, "api", "recipe", "recipe generation not configured", nil))
		return
	}
	if !s.recipeBusy.CompareAndSwap(false, true) {
		s.writeError(w, http.StatusConflict, "a recipe is already being generated", "")
		return
	}
	defer s.recipeBusy.Store(false)

	items, err := s.inventory.Snapshot(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	result, err := s.recipes.Generate(r.Context(), items)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, FromRecipe(result))
}
