package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/rpggio/searchstudy/internal/repository"
	"github.com/rpggio/searchstudy/internal/storage"
)

// Service persists participant identity and consent per device.
type Service struct {
	backend storage.Backend
	tables  repository.TableWriter
	opts    Options
	logger  *slog.Logger
}

// NewService creates a new identity service.
func NewService(backend storage.Backend, tables repository.TableWriter, opts Options, logger *slog.Logger) *Service {
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	if opts.ConsentTable == "" {
		opts.ConsentTable = "consent"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, tables: tables, opts: opts, logger: logger}
}

func (s *Service) store(deviceID string) storage.Store {
	return storage.Scoped(s.backend, storage.DeviceNamespace(s.opts.StudyID, deviceID))
}

// EnsureParticipantID returns the persisted participant id, creating one on
// first use.
func (s *Service) EnsureParticipantID(ctx context.Context, deviceID string) (string, error) {
	st := s.store(deviceID)
	id, ok, err := st.Get(ctx, storage.KeyParticipantID)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}

	id = s.opts.NewID()
	if err := st.Set(ctx, storage.KeyParticipantID, id); err != nil {
		return "", err
	}
	s.logger.Info("participant created", "participant_id", id)
	return id, nil
}

// SetRecruitmentID stores the externally supplied recruitment id.
func (s *Service) SetRecruitmentID(ctx context.Context, deviceID, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return ErrInvalidInput
	}
	return s.store(deviceID).Set(ctx, storage.KeyRecruitmentID, value)
}

// RecruitmentID returns the stored recruitment id, if any.
func (s *Service) RecruitmentID(ctx context.Context, deviceID string) (string, bool, error) {
	return s.store(deviceID).Get(ctx, storage.KeyRecruitmentID)
}

// Enter handles the identity step: the participant id is kept if present and
// the recruitment id is overwritten with the newly entered value.
func (s *Service) Enter(ctx context.Context, deviceID, recruitmentID string) (*Participant, error) {
	if strings.TrimSpace(recruitmentID) == "" {
		return nil, ErrInvalidInput
	}
	if _, err := s.EnsureParticipantID(ctx, deviceID); err != nil {
		return nil, err
	}
	if err := s.SetRecruitmentID(ctx, deviceID, recruitmentID); err != nil {
		return nil, err
	}
	return s.Participant(ctx, deviceID)
}

// RequireIdentity returns the participant id or ErrIdentityRequired.
func (s *Service) RequireIdentity(ctx context.Context, deviceID string) (string, error) {
	if deviceID == "" {
		return "", ErrIdentityRequired
	}
	id, ok, err := s.store(deviceID).Get(ctx, storage.KeyParticipantID)
	if err != nil {
		return "", err
	}
	if !ok || id == "" {
		return "", ErrIdentityRequired
	}
	return id, nil
}

// Participant loads the full identity for a device.
func (s *Service) Participant(ctx context.Context, deviceID string) (*Participant, error) {
	id, err := s.RequireIdentity(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	st := s.store(deviceID)

	p := &Participant{ID: id, Consent: ConsentUndecided}
	if rid, ok, err := st.Get(ctx, storage.KeyRecruitmentID); err != nil {
		return nil, err
	} else if ok {
		p.RecruitmentID = rid
	}
	if c, ok, err := st.Get(ctx, storage.KeyConsent); err != nil {
		return nil, err
	} else if ok {
		p.Consent = Consent(c)
	}
	return p, nil
}

// RecordConsent writes the consent decision to the consent table and then
// stores it locally. A decision can be recorded only once.
func (s *Service) RecordConsent(ctx context.Context, deviceID string, granted bool) (*Participant, error) {
	p, err := s.Participant(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if p.Consent.Decided() {
		return nil, ErrConsentDecided
	}

	decision, answer := ConsentDeclined, "no"
	if granted {
		decision, answer = ConsentGranted, "yes"
	}

	fields := map[string]any{
		"prolific_id":    p.RecruitmentID,
		"participant_id": p.ID,
		"consent":        answer,
	}
	if err := s.tables.Save(ctx, s.opts.ConsentTable, fields, repository.ShapeRecords); err != nil {
		return nil, fmt.Errorf("saving consent: %w", err)
	}

	if err := s.store(deviceID).Set(ctx, storage.KeyConsent, string(decision)); err != nil {
		return nil, err
	}
	p.Consent = decision

	s.logger.Info("consent recorded", "participant_id", p.ID, "consent", decision)
	return p, nil
}
