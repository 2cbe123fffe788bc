package http

import "net/http"

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	tasks, err := s.svc.ListTasks(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(tasks))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req taskRequest
	if err := bindAndValidate(w, r, "create task", &req); err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.CreateTask(r.Context(), projectID, req.toTask())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req taskPatchRequest
	if err := bindAndValidate(w, r, "update task", &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	t, err := s.svc.UpdateTask(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.svc.DeleteTask)
}

// handleTaskMetrics always answers 200; store failures yield zeroed metrics.
func (s *Server) handleTaskMetrics(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.TaskMetrics(r.Context(), projectID))
}
