package transport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rpggio/searchstudy/internal/domain/task"
)

// controller returns the live task controller of the current participant.
func (s *Server) controller(r *http.Request) (*task.Controller, error) {
	p, _ := ParticipantFromContext(r.Context())
	return s.svc.Sessions.Get(p.ID)
}

func (s *Server) handleStartTask(w http.ResponseWriter, r *http.Request) {
	p, _ := ParticipantFromContext(r.Context())
	a, err := s.currentAssignment(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	c, err := s.svc.Sessions.Start(r.Context(), task.Session{ParticipantID: p.ID, Assignment: *a}, s.deviceStore(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Info("task session started", "participant_id", p.ID, "task_id", a.Topic, "system_type", a.SystemType)
	writeJSON(w, http.StatusCreated, c.Snapshot())
}

func (s *Server) handleTaskSnapshot(w http.ResponseWriter, r *http.Request) {
	c, err := s.controller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleBegin(w http.ResponseWriter, r *http.Request) {
	c, err := s.controller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := c.Begin(); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

type modalRequest struct {
	Open bool `json:"open"`
}

func (s *Server) handleModal(w http.ResponseWriter, r *http.Request) {
	var req modalRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.controller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := c.SetModal(req.Open); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

type visibilityRequest struct {
	Visible bool `json:"visible"`
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var req visibilityRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.controller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c.SetVisible(req.Visible)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	c, err := s.controller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c.Back()
	writeJSON(w, http.StatusOK, c.Snapshot())
}

type submitRequest struct {
	Text string `json:"text"`
}

type submitResponse struct {
	*task.SubmitResult
	Segments []task.Segment `json:"segments,omitempty"`
	Progress task.Progress  `json:"progress"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.controller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := c.Submit(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	resp := submitResponse{SubmitResult: res, Progress: c.Snapshot()}
	if res.Turn != nil && !res.Fallback {
		resp.Segments = task.RenderCitations(res.Turn.Content, res.Turn.Sources)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var click task.Click
	if err := decodeJSON(r, &click); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.controller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := c.RecordClick(r.Context(), click); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scrapRequest struct {
	task.Reference
	Text string `json:"text"`
}

func (s *Server) handleAddScrap(w http.ResponseWriter, r *http.Request) {
	var req scrapRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.controller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var item task.Item
	if req.Kind == task.KindNote {
		item, err = c.AddNote(r.Context(), req.Text)
	} else {
		item, err = c.Ingest(r.Context(), req.Reference)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func scrapIndex(r *http.Request) (int, error) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, task.ErrItemNotFound
	}
	return idx, nil
}

type commentRequest struct {
	Comment string `json:"comment"`
}

func (s *Server) handleUpdateScrap(w http.ResponseWriter, r *http.Request) {
	idx, err := scrapIndex(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req commentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.controller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	item, err := c.UpdateComment(r.Context(), idx, req.Comment)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (s *Server) handleRemoveScrap(w http.ResponseWriter, r *http.Request) {
	idx, err := scrapIndex(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.controller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := c.RemoveItem(r.Context(), idx); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type advanceResponse struct {
	Progress      task.Progress `json:"progress"`
	CompletionURL string        `json:"completion_url,omitempty"`
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	p, _ := ParticipantFromContext(r.Context())
	c, err := s.controller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := c.Advance(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	progress := c.Snapshot()
	s.svc.Sessions.Release(p.ID, c)
	writeJSON(w, http.StatusOK, advanceResponse{Progress: progress, CompletionURL: s.opts.CompletionURL})
}
