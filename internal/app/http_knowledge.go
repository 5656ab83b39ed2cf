package app

import (
	"net/http"
	"strconv"
)

type tagBody struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *HTTPServer) handleCardCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		cards, err := s.service.ListCards(r.Context(), session.UserID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, cards)
	case http.MethodPost:
		var body CardInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		card, err := s.service.CreateCard(r.Context(), session.UserID, body)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, card)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleCardSearch(w http.ResponseWriter, r *http.Request, session Session) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	query := r.URL.Query()
	var tagID int64
	if raw := query.Get("tagId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid tagId", nil)
			return
		}
		tagID = parsed
	}
	limit, _ := strconv.Atoi(query.Get("limit"))
	offset, _ := strconv.Atoi(query.Get("offset"))

	resp, err := s.service.SearchCards(r.Context(), session.UserID, query.Get("q"), tagID, limit, offset)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleCard(w http.ResponseWriter, r *http.Request, session Session, cardID int64, rest []string) {
	switch {
	case len(rest) == 0 && r.Method == http.MethodPut:
		var body CardInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		card, err := s.service.UpdateCard(r.Context(), session.UserID, cardID, body)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)

	case len(rest) == 0 && r.Method == http.MethodDelete:
		if err := s.service.DeleteCard(r.Context(), session.UserID, cardID); err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && rest[0] == "hide" && r.Method == http.MethodPut:
		card, err := s.service.ToggleCardHidden(r.Context(), session.UserID, cardID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)

	case len(rest) == 1 && rest[0] == "tags" && r.Method == http.MethodPost:
		var body struct {
			TagIDs []int64 `json:"tagIds"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		card, err := s.service.AddCardTags(r.Context(), session.UserID, cardID, body.TagIDs)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, card)

	case len(rest) == 2 && rest[0] == "tags" && r.Method == http.MethodDelete:
		tagID, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil || tagID <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "Invalid id", nil)
			return
		}
		if err := s.service.RemoveCardTag(r.Context(), session.UserID, cardID, tagID); err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case len(rest) == 1 && rest[0] == "history" && r.Method == http.MethodGet:
		revisions, err := s.service.CardHistory(r.Context(), session.UserID, cardID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"revisions": revisions})

	case len(rest) == 2 && rest[0] == "history" && r.Method == http.MethodGet:
		rev, err := s.service.CardRevision(r.Context(), session.UserID, cardID, rest[1])
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rev)

	case len(rest) <= 2 && (len(rest) == 0 || rest[0] == "hide" || rest[0] == "tags" || rest[0] == "history"):
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleTagCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		tags, err := s.service.ListTags(r.Context(), session.UserID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tags)
	case http.MethodPost:
		var body tagBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		tag, err := s.service.CreateTag(r.Context(), session.UserID, body.Name, body.Color)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, tag)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleTag(w http.ResponseWriter, r *http.Request, session Session, tagID int64, rest []string) {
	if len(rest) > 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var body tagBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		tag, err := s.service.UpdateTag(r.Context(), session.UserID, tagID, body.Name, body.Color)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tag)
	case http.MethodDelete:
		if err := s.service.DeleteTag(r.Context(), session.UserID, tagID); err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}
