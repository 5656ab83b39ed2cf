package app

import (
	"net/http"
	"strconv"
	"strings"
)

type titleDescriptionBody struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type reorderBody struct {
	NewOrder int `json:"newOrder"`
}

func (s *HTTPServer) handleProjectCollection(w http.ResponseWriter, r *http.Request, session Session) {
	switch r.Method {
	case http.MethodGet:
		projects, err := s.service.ListProjects(r.Context(), session.UserID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, projects)
	case http.MethodPost:
		var body titleDescriptionBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		project, err := s.service.CreateProject(r.Context(), session.UserID, body.Title, body.Description)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, project)
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleProject(w http.ResponseWriter, r *http.Request, session Session, projectID int64, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodPut:
			var body titleDescriptionBody
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			project, err := s.service.UpdateProject(r.Context(), session.UserID, projectID, body.Title, body.Description)
			if err != nil {
				s.respondError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, project)
		case http.MethodDelete:
			if err := s.service.DeleteProject(r.Context(), session.UserID, projectID); err != nil {
				s.respondError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(rest) == 1 && rest[0] == "objectives" {
		switch r.Method {
		case http.MethodGet:
			objectives, err := s.service.ListObjectives(r.Context(), session.UserID, projectID)
			if err != nil {
				s.respondError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, objectives)
		case http.MethodPost:
			var body titleDescriptionBody
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			objective, err := s.service.CreateObjective(r.Context(), session.UserID, projectID, body.Title, body.Description)
			if err != nil {
				s.respondError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, objective)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleObjective(w http.ResponseWriter, r *http.Request, session Session, objectiveID int64, rest []string) {
	action := ""
	if len(rest) == 1 {
		action = rest[0]
	} else if len(rest) > 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch {
	case action == "" && r.Method == http.MethodPut:
		var body titleDescriptionBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		objective, err := s.service.UpdateObjective(r.Context(), session.UserID, objectiveID, body.Title, body.Description)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, objective)

	case action == "" && r.Method == http.MethodDelete:
		if err := s.service.DeleteObjective(r.Context(), session.UserID, objectiveID); err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case action == "reorder" && r.Method == http.MethodPut:
		var body reorderBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		objective, err := s.service.ReorderObjective(r.Context(), session.UserID, objectiveID, body.NewOrder)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, objective)

	case action == "tasks" && r.Method == http.MethodGet:
		tasks, err := s.service.ListTasks(r.Context(), session.UserID, objectiveID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)

	case action == "tasks" && r.Method == http.MethodPost:
		var body titleDescriptionBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		task, err := s.service.CreateTask(r.Context(), session.UserID, objectiveID, body.Title, body.Description)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, task)

	case action == "messages" && r.Method == http.MethodGet:
		messages, err := s.service.ListMessages(r.Context(), session.UserID, objectiveID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, messages)

	case action == "messages" && r.Method == http.MethodPost:
		var body SendMessageInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		turn, err := s.service.SendMessage(r.Context(), session.UserID, objectiveID, body)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, turn)

	case action == "export" && r.Method == http.MethodGet:
		s.handleExport(w, r, session, objectiveID)

	case action == "" || action == "reorder" || action == "tasks" || action == "messages" || action == "export":
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, session Session, objectiveID int64) {
	query := r.URL.Query()
	includeHidden, _ := strconv.ParseBool(query.Get("includeHidden"))
	archived, _ := strconv.ParseBool(query.Get("archive"))

	out, err := s.service.ExportObjective(r.Context(), session.UserID, objectiveID, query.Get("format"), includeHidden, archived)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if out.Archived != nil {
		writeJSON(w, http.StatusCreated, map[string]any{
			"filename": out.Result.Filename,
			"mimeType": out.Result.MimeType,
			"archive":  out.Archived,
		})
		return
	}

	w.Header().Set("Content-Disposition", "attachment; filename=\""+out.Result.Filename+"\"")
	w.Header().Set("Content-Type", out.Result.MimeType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Result.Data)
}

func (s *HTTPServer) handleTask(w http.ResponseWriter, r *http.Request, session Session, taskID int64, rest []string) {
	action := strings.Join(rest, "/")

	switch {
	case action == "" && r.Method == http.MethodPut:
		var body titleDescriptionBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		task, err := s.service.UpdateTask(r.Context(), session.UserID, taskID, body.Title, body.Description)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, task)

	case action == "" && r.Method == http.MethodDelete:
		if err := s.service.DeleteTask(r.Context(), session.UserID, taskID); err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case action == "complete" && r.Method == http.MethodPut:
		task, err := s.service.ToggleTaskCompleted(r.Context(), session.UserID, taskID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, task)

	case action == "reorder" && r.Method == http.MethodPut:
		var body reorderBody
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		task, err := s.service.ReorderTask(r.Context(), session.UserID, taskID, body.NewOrder)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, task)

	case action == "" || action == "complete" || action == "reorder":
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleMessage(w http.ResponseWriter, r *http.Request, session Session, messageID int64, rest []string) {
	action := strings.Join(rest, "/")

	switch {
	case action == "" && r.Method == http.MethodDelete:
		if err := s.service.DeleteMessage(r.Context(), session.UserID, messageID); err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case action == "hide" && r.Method == http.MethodPut:
		msg, err := s.service.ToggleMessageHidden(r.Context(), session.UserID, messageID)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, msg)

	case action == "to-card" && r.Method == http.MethodPost:
		var body struct {
			Title string `json:"title"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		card, err := s.service.MessageToCard(r.Context(), session.UserID, messageID, body.Title)
		if err != nil {
			s.respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, card)

	case action == "" || action == "hide" || action == "to-card":
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}
