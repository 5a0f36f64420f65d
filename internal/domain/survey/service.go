package survey

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/rpggio/searchstudy/internal/domain/assignment"
	"github.com/rpggio/searchstudy/internal/repository"
	"github.com/rpggio/searchstudy/internal/storage"
)

// Service serves survey forms, keeps drafts and stores submissions.
type Service struct {
	backend     storage.Backend
	tables      repository.TableWriter
	assignments AssignmentReader
	opts        Options
	logger      *slog.Logger
}

// NewService creates a new survey service.
func NewService(backend storage.Backend, tables repository.TableWriter, assignments AssignmentReader, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:     backend,
		tables:      tables,
		assignments: assignments,
		opts:        opts.withDefaults(),
		logger:      logger,
	}
}

func (s *Service) store(deviceID string) storage.Store {
	return storage.Scoped(s.backend, storage.DeviceNamespace(s.opts.StudyID, deviceID))
}

func draftKey(kind Kind) string {
	return storage.KeyDraftPrefix + string(kind)
}

// Form returns the question set of kind. Pre and post surveys are phrased for
// the participant's assigned topic.
func (s *Service) Form(ctx context.Context, deviceID string, kind Kind) (*Form, error) {
	form, _, err := s.form(ctx, deviceID, kind)
	if err != nil {
		return nil, err
	}
	return &form, nil
}

func (s *Service) form(ctx context.Context, deviceID string, kind Kind) (Form, *assignment.Assignment, error) {
	switch kind {
	case KindDemographic:
		return Demographic(), nil, nil
	case KindPre, KindPost:
	default:
		return Form{}, nil, ErrUnknownKind
	}

	a, ok, err := s.assignments.Get(ctx, deviceID)
	if err != nil {
		return Form{}, nil, err
	}
	if !ok {
		return Form{}, nil, ErrAssignmentRequired
	}
	if kind == KindPre {
		return PreSurvey(a.Topic), a, nil
	}
	return PostSurvey(a.Topic), a, nil
}

// SaveDraft stores in-progress answers so a reload can restore them.
func (s *Service) SaveDraft(ctx context.Context, deviceID string, kind Kind, r Responses) error {
	if !kind.Valid() {
		return ErrUnknownKind
	}
	if r == nil {
		r = Responses{}
	}
	return storage.SetJSON(ctx, s.store(deviceID), draftKey(kind), r)
}

// Draft returns the stored draft for kind.
func (s *Service) Draft(ctx context.Context, deviceID string, kind Kind) (Responses, bool, error) {
	if !kind.Valid() {
		return nil, false, ErrUnknownKind
	}
	var r Responses
	ok, err := storage.GetJSON(ctx, s.store(deviceID), draftKey(kind), &r)
	if err != nil || !ok {
		return nil, false, err
	}
	return r, true, nil
}

// Submit validates and stores a survey page. Unanswered required questions
// return *IncompleteError unless the submission allows it. A store failure
// returns ErrSaveFailed and keeps the draft.
func (s *Service) Submit(ctx context.Context, deviceID, participantID string, kind Kind, sub Submission) (*Receipt, error) {
	if participantID == "" {
		return nil, ErrInvalidInput
	}
	form, a, err := s.form(ctx, deviceID, kind)
	if err != nil {
		return nil, err
	}

	missing, err := Validate(form, sub.Responses)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 && !sub.AllowIncomplete {
		return nil, &IncompleteError{Missing: missing}
	}

	table, shape, fields, err := s.record(form, a, participantID, sub.Responses)
	if err != nil {
		return nil, err
	}

	if err := s.tables.Save(ctx, table, fields, shape); err != nil {
		s.logger.Warn("survey not saved", "participant_id", participantID, "kind", kind, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	if err := s.store(deviceID).Remove(ctx, draftKey(kind)); err != nil {
		s.logger.Warn("survey draft not cleared", "participant_id", participantID, "kind", kind, "error", err)
	}

	s.logger.Info("survey submitted", "participant_id", participantID, "kind", kind, "unanswered", len(missing))
	return &Receipt{Kind: kind, Table: table, Unanswered: missing}, nil
}

// record builds the table row for a submission.
func (s *Service) record(form Form, a *assignment.Assignment, participantID string, r Responses) (string, repository.Shape, map[string]any, error) {
	switch form.Kind {
	case KindPre:
		pre, err := sectionJSON(form, r, SectionPre)
		if err != nil {
			return "", 0, nil, err
		}
		return s.opts.PreTable, repository.ShapeRecords, map[string]any{
			"participant_id":      participantID,
			"task_id":             a.Topic,
			"presurvey_responses": pre,
		}, nil

	case KindPost:
		fields := map[string]any{
			"participant_id": participantID,
			"task_id":        a.Topic,
			"condition":      a.Condition(),
		}
		columns := map[string]string{
			SectionSerendipity:  "serendipity_responses",
			SectionEmotion:      "emotion_responses",
			SectionSelfEfficacy: "post_self_efficacy_responses",
			SectionOpenEnded:    "open_ended",
		}
		for section, column := range columns {
			v, err := sectionJSON(form, r, section)
			if err != nil {
				return "", 0, nil, err
			}
			fields[column] = v
		}
		return s.opts.PostTable, repository.ShapeRecords, fields, nil

	default:
		fields := map[string]any{"participant_id": participantID}
		for _, q := range form.Questions {
			v, ok := r[q.ID]
			if !ok || !answered(v) {
				continue
			}
			switch q.Type {
			case AnswerNumber:
				n, _ := numberValue(v)
				fields[q.ID] = n
			case AnswerMulti:
				list, _ := stringList(v)
				fields[q.ID] = list
			default:
				fields[q.ID] = v
			}
		}
		return s.opts.DemographicTable, repository.ShapeFields, fields, nil
	}
}

// sectionJSON encodes the answers of one section keyed by question text, the
// way the study's tables store them. Open-ended answers keep their ids.
func sectionJSON(form Form, r Responses, section string) (string, error) {
	out := map[string]any{}
	for _, q := range form.Questions {
		if q.Section != section {
			continue
		}
		v, ok := r[q.ID]
		if !ok || !answered(v) {
			continue
		}
		key := q.Text
		if q.Type == AnswerText {
			key = q.ID
		}
		if q.Type == AnswerLikert {
			n, _ := likertValue(v)
			v = n
		}
		out[key] = v
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encoding %s responses: %w", section, err)
	}
	return string(data), nil
}
