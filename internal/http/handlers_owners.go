package http

import "net/http"

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.svc.ListProjects(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(projects))
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := bindAndValidate(w, r, "create project", &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.CreateProject(r.Context(), req.toProject())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.GetProject(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req projectRequest
	if err := bindAndValidate(w, r, "update project", &req); err != nil {
		writeError(w, r, err)
		return
	}
	p, err := s.svc.UpdateProject(r.Context(), id, req.toProject())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.svc.DeleteProject)
}

func (s *Server) handleListSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := s.svc.ListSuppliers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(suppliers))
}

func (s *Server) handleCreateSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := bindAndValidate(w, r, "create supplier", &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.svc.CreateSupplier(r.Context(), req.toSupplier())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleGetSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.svc.GetSupplier(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleUpdateSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req supplierRequest
	if err := bindAndValidate(w, r, "update supplier", &req); err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.svc.UpdateSupplier(r.Context(), id, req.toSupplier())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handleDeleteSupplier(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.svc.DeleteSupplier)
}

func (s *Server) handleListTeamMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.ListTeamMembers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(members))
}

func (s *Server) handleCreateTeamMember(w http.ResponseWriter, r *http.Request) {
	var req teamMemberRequest
	if err := bindAndValidate(w, r, "create team member", &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.CreateTeamMember(r.Context(), req.toTeamMember())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetTeamMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.GetTeamMember(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUpdateTeamMember(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req teamMemberRequest
	if err := bindAndValidate(w, r, "update team member", &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.UpdateTeamMember(r.Context(), id, req.toTeamMember())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteTeamMember(w http.ResponseWriter, r *http.Request) {
	s.deleteByID(w, r, s.svc.DeleteTeamMember)
}
