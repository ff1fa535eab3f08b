package profile

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kapu/campaign-ops-go/internal/domain"
	apperrors "github.com/kapu/campaign-ops-go/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed presets/profiles.yaml
var presetYAML []byte

// profileFile mirrors the YAML layout of presets and PROFILES_FILE.
type profileFile struct {
	Profiles []domain.CandidateProfile `yaml:"profiles"`
}

// Store keeps candidate profiles in memory. Profiles are append-only and
// handed out as copies.
type Store struct {
	mu       sync.RWMutex
	profiles []domain.CandidateProfile
	index    map[string]int
	logger   *zap.Logger
}

// NewStore loads the embedded presets and, when extraFile is set, the
// profiles declared there.
func NewStore(extraFile string, logger *zap.Logger) (*Store, error) {
	s := &Store{index: make(map[string]int), logger: logger}

	presets, err := parseProfiles(presetYAML)
	if err != nil {
		return nil, fmt.Errorf("parse embedded presets: %w", err)
	}
	for _, p := range presets {
		if _, err := s.add(p); err != nil {
			return nil, fmt.Errorf("embedded preset %q: %w", p.Name, err)
		}
	}

	if extraFile != "" {
		data, err := os.ReadFile(extraFile)
		if err != nil {
			return nil, fmt.Errorf("read profiles file: %w", err)
		}
		extra, err := parseProfiles(data)
		if err != nil {
			return nil, fmt.Errorf("parse profiles file: %w", err)
		}
		for _, p := range extra {
			if _, err := s.add(p); err != nil {
				logger.Warn("Skipping invalid profile", zap.String("file", extraFile), zap.String("name", p.Name), zap.Error(err))
			}
		}
	}

	logger.Info("Candidate profiles loaded", zap.Int("count", len(s.profiles)))
	return s, nil
}

func parseProfiles(data []byte) ([]domain.CandidateProfile, error) {
	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	return file.Profiles, nil
}

// Create validates p, assigns a fresh id and stores it.
func (s *Store) Create(p domain.CandidateProfile) (domain.CandidateProfile, error) {
	p.ID = ""
	created, err := s.add(p)
	if err != nil {
		return domain.CandidateProfile{}, apperrors.NewValidationError(fmt.Sprintf("perfil inválido: %v", err), "profile", p.Name)
	}
	s.logger.Info("Candidate profile created", zap.String("id", created.ID), zap.String("name", created.Name))
	return created, nil
}

func (s *Store) add(p domain.CandidateProfile) (domain.CandidateProfile, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Role = strings.TrimSpace(p.Role)
	p.StyleDescription = strings.TrimSpace(p.StyleDescription)
	if err := p.Validate(); err != nil {
		return domain.CandidateProfile{}, err
	}
	if p.Avatar == "" {
		p.Avatar = initials(p.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = strings.TrimSpace(p.ID)
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if _, exists := s.index[p.ID]; exists {
		return domain.CandidateProfile{}, fmt.Errorf("duplicate profile id %q", p.ID)
	}
	s.index[p.ID] = len(s.profiles)
	s.profiles = append(s.profiles, p)
	return p, nil
}

func (s *Store) List() []domain.CandidateProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.CandidateProfile, len(s.profiles))
	copy(out, s.profiles)
	return out
}

func (s *Store) Get(id string) (domain.CandidateProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.index[id]
	if !ok {
		return domain.CandidateProfile{}, false
	}
	return s.profiles[idx], true
}

// Default is the profile a new session starts with.
func (s *Store) Default() (domain.CandidateProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.profiles) == 0 {
		return domain.CandidateProfile{}, false
	}
	return s.profiles[0], true
}

func initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			b.WriteString(strings.ToUpper(string(r)))
			break
		}
		if b.Len() >= 2 {
			break
		}
	}
	return b.String()
}
