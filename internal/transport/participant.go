package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rpggio/searchstudy/internal/domain/assignment"
	"github.com/rpggio/searchstudy/internal/domain/identity"
	"github.com/rpggio/searchstudy/internal/domain/survey"
)

type enterIdentityRequest struct {
	RecruitmentID string `json:"recruitment_id"`
}

func (s *Server) handleEnterIdentity(w http.ResponseWriter, r *http.Request) {
	var req enterIdentityRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.Identity.Enter(r.Context(), s.deviceID(r), req.RecruitmentID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetIdentity(w http.ResponseWriter, r *http.Request) {
	p, _ := ParticipantFromContext(r.Context())
	writeJSON(w, http.StatusOK, p)
}

type consentRequest struct {
	Granted bool `json:"granted"`
}

type consentResponse struct {
	*identity.Participant
	Redirect string `json:"redirect,omitempty"`
}

func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	var req consentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.svc.Identity.RecordConsent(r.Context(), s.deviceID(r), req.Granted)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	resp := consentResponse{Participant: p}
	if p.Consent == identity.ConsentDeclined {
		resp.Redirect = s.opts.DeclineURL
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAssignment(w http.ResponseWriter, r *http.Request) {
	p, _ := ParticipantFromContext(r.Context())
	a, err := s.svc.Assignments.Assign(r.Context(), s.deviceID(r), p.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func surveyKind(r *http.Request) (survey.Kind, error) {
	kind := survey.Kind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		return "", survey.ErrUnknownKind
	}
	return kind, nil
}

func (s *Server) handleSurveyForm(w http.ResponseWriter, r *http.Request) {
	kind, err := surveyKind(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	form, err := s.svc.Surveys.Form(r.Context(), s.deviceID(r), kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (s *Server) handleSurveySubmit(w http.ResponseWriter, r *http.Request) {
	kind, err := surveyKind(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var sub survey.Submission
	if err := decodeJSON(r, &sub); err != nil {
		s.writeError(w, r, err)
		return
	}

	p, _ := ParticipantFromContext(r.Context())
	receipt, err := s.svc.Surveys.Submit(r.Context(), s.deviceID(r), p.ID, kind, sub)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

type draftResponse struct {
	Kind      survey.Kind      `json:"kind"`
	Responses survey.Responses `json:"responses"`
	Found     bool             `json:"found"`
}

func (s *Server) handleGetDraft(w http.ResponseWriter, r *http.Request) {
	kind, err := surveyKind(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	responses, ok, err := s.svc.Surveys.Draft(r.Context(), s.deviceID(r), kind)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if responses == nil {
		responses = survey.Responses{}
	}
	writeJSON(w, http.StatusOK, draftResponse{Kind: kind, Responses: responses, Found: ok})
}

func (s *Server) handleSaveDraft(w http.ResponseWriter, r *http.Request) {
	kind, err := surveyKind(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var responses survey.Responses
	if err := decodeJSON(r, &responses); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.svc.Surveys.SaveDraft(r.Context(), s.deviceID(r), kind, responses); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// currentAssignment returns the participant's condition without assigning one.
func (s *Server) currentAssignment(r *http.Request) (*assignment.Assignment, error) {
	a, ok, err := s.svc.Assignments.Get(r.Context(), s.deviceID(r))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, survey.ErrAssignmentRequired
	}
	return a, nil
}
