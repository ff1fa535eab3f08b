package session

import (
	"github.com/kapu/campaign-ops-go/internal/constants"
	"github.com/kapu/campaign-ops-go/internal/domain"
)

// Banner is a dismissible user-facing error. It stays until the operator
// dismisses it or the next pipeline starts.
type Banner struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

type DefenseState struct {
	URL      string                 `json:"url,omitempty"`
	Scout    *domain.ScoutResult    `json:"scout,omitempty"`
	Analysis *domain.AnalysisResult `json:"analysis,omitempty"`
}

// TargetingState holds the latest segmentation. Generation increases with
// every SegmentsReplaced and never goes back, so a merge built against an
// older segmentation can be told apart from one built against the current.
type TargetingState struct {
	Region     string                       `json:"region,omitempty"`
	Generation uint64                       `json:"generation"`
	Segments   []domain.TargetSegment       `json:"segments"`
	Schedule   []domain.ContentScheduleItem `json:"schedule"`
}

type NetworkState struct {
	Stats    []domain.NetworkStat         `json:"stats"`
	Analysis *domain.NetworkAgentAnalysis `json:"analysis,omitempty"`
}

type TranslationState struct {
	Source         string `json:"source,omitempty"`
	TargetLanguage string `json:"targetLanguage,omitempty"`
	Result         string `json:"result,omitempty"`
}

// State is everything the presentation layer renders for one operator.
// Reduce never mutates a State or its slices in place, so a State handed to
// a subscriber stays valid after later dispatches.
type State struct {
	Version         uint64           `json:"version"`
	Authenticated   bool             `json:"authenticated"`
	Operator        string           `json:"operator,omitempty"`
	Mode            domain.Mode      `json:"mode,omitempty"`
	ActiveProfileID string           `json:"activeProfileId,omitempty"`
	Defense         DefenseState     `json:"defense"`
	Targeting       TargetingState   `json:"targeting"`
	Network         NetworkState     `json:"network"`
	Translation     TranslationState `json:"translation"`
	Progress        float64          `json:"progress"`
	Logs            []domain.LogLine `json:"logs"`
	Banner          *Banner          `json:"banner,omitempty"`
	Pending         []string         `json:"pending"`
}

// Initial is the unauthenticated state.
func Initial() State {
	return State{
		Targeting: TargetingState{Segments: []domain.TargetSegment{}, Schedule: []domain.ContentScheduleItem{}},
		Network:   NetworkState{Stats: []domain.NetworkStat{}},
		Logs:      []domain.LogLine{},
		Pending:   []string{},
	}
}

// Action is a state transition. The concrete types below are the only
// implementations.
type Action interface {
	isAction()
}

type (
	LoggedIn struct {
		Operator  string
		ProfileID string
	}
	LoggedOut       struct{}
	ModeSelected    struct{ Mode domain.Mode }
	ProfileSelected struct{ ID string }
	PipelineStarted struct{}
	BannerRaised    struct{ Message, Code string }
	BannerDismissed struct{}
	ProgressSet     struct{ Value float64 }
	LogAppended     struct{ Line domain.LogLine }
	PendingChanged  struct{ Keys []string }

	ScoutCompleted struct {
		URL    string
		Result domain.ScoutResult
	}
	AnalysisCompleted struct{ Result domain.AnalysisResult }

	SegmentsReplaced struct {
		Region   string
		Segments []domain.TargetSegment
	}
	// The merges below carry the segmentation Generation they were built
	// against. Asset merges also carry the prompt or script they rendered and
	// only land on a campaign that still has it.
	CampaignMerged struct {
		SegmentID  string
		Generation uint64
		Campaign   *domain.AdCampaign
	}
	ImageMerged struct {
		SegmentID    string
		Generation   uint64
		VisualPrompt string
		URL          string
	}
	AudioMerged struct {
		SegmentID   string
		Generation  uint64
		AudioScript string
		URL         string
	}
	ScheduleReplaced struct{ Items []domain.ContentScheduleItem }

	NetworkReported struct {
		Stats    []domain.NetworkStat
		Analysis domain.NetworkAgentAnalysis
	}
	TranslationCompleted struct{ Source, TargetLanguage, Result string }
)

func (LoggedIn) isAction()             {}
func (LoggedOut) isAction()            {}
func (ModeSelected) isAction()         {}
func (ProfileSelected) isAction()      {}
func (PipelineStarted) isAction()      {}
func (BannerRaised) isAction()         {}
func (BannerDismissed) isAction()      {}
func (ProgressSet) isAction()          {}
func (LogAppended) isAction()          {}
func (PendingChanged) isAction()       {}
func (ScoutCompleted) isAction()       {}
func (AnalysisCompleted) isAction()    {}
func (SegmentsReplaced) isAction()     {}
func (CampaignMerged) isAction()       {}
func (ImageMerged) isAction()          {}
func (AudioMerged) isAction()          {}
func (ScheduleReplaced) isAction()     {}
func (NetworkReported) isAction()      {}
func (TranslationCompleted) isAction() {}

// Reduce returns the state after applying a. It is pure.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case LoggedIn:
		next := Initial()
		next.Version = s.Version
		next.Targeting.Generation = s.Targeting.Generation
		next.Authenticated = true
		next.Operator = act.Operator
		next.Mode = domain.ModeDefenseResponse
		next.ActiveProfileID = act.ProfileID
		s = next
	case LoggedOut:
		version, generation := s.Version, s.Targeting.Generation
		s = Initial()
		s.Version = version
		s.Targeting.Generation = generation
	case ModeSelected:
		s.Mode = act.Mode
	case ProfileSelected:
		s.ActiveProfileID = act.ID
	case PipelineStarted:
		s.Banner = nil
	case BannerRaised:
		s.Banner = &Banner{Message: act.Message, Code: act.Code}
	case BannerDismissed:
		s.Banner = nil
	case ProgressSet:
		s.Progress = act.Value
	case LogAppended:
		s.Logs = appendLog(s.Logs, act.Line)
	case PendingChanged:
		s.Pending = append([]string{}, act.Keys...)

	case ScoutCompleted:
		result := act.Result
		s.Defense = DefenseState{URL: act.URL, Scout: &result}
	case AnalysisCompleted:
		result := act.Result
		s.Defense.Analysis = &result

	case SegmentsReplaced:
		segments := make([]domain.TargetSegment, len(act.Segments))
		for i, seg := range act.Segments {
			segments[i] = seg.Clone()
		}
		s.Targeting.Region = act.Region
		s.Targeting.Generation++
		s.Targeting.Segments = segments
	case CampaignMerged:
		if act.Generation != s.Targeting.Generation {
			return s
		}
		s.Targeting.Segments = updateSegment(s.Targeting.Segments, act.SegmentID, func(seg *domain.TargetSegment) {
			seg.AdCampaign = act.Campaign.Clone()
		})
	case ImageMerged:
		if !s.Targeting.hasCampaign(act.Generation, act.SegmentID, func(c *domain.AdCampaign) bool {
			return c.VisualPrompt == act.VisualPrompt
		}) {
			return s
		}
		s.Targeting.Segments = updateSegment(s.Targeting.Segments, act.SegmentID, func(seg *domain.TargetSegment) {
			seg.AdCampaign.GeneratedImageURL = act.URL
		})
	case AudioMerged:
		if !s.Targeting.hasCampaign(act.Generation, act.SegmentID, func(c *domain.AdCampaign) bool {
			return c.AudioScript == act.AudioScript
		}) {
			return s
		}
		s.Targeting.Segments = updateSegment(s.Targeting.Segments, act.SegmentID, func(seg *domain.TargetSegment) {
			seg.AdCampaign.GeneratedAudioURL = act.URL
		})
	case ScheduleReplaced:
		s.Targeting.Schedule = append([]domain.ContentScheduleItem{}, act.Items...)

	case NetworkReported:
		analysis := act.Analysis
		s.Network = NetworkState{
			Stats:    append([]domain.NetworkStat{}, act.Stats...),
			Analysis: &analysis,
		}
	case TranslationCompleted:
		s.Translation = TranslationState{Source: act.Source, TargetLanguage: act.TargetLanguage, Result: act.Result}
	default:
		return s
	}
	s.Version++
	return s
}

// hasCampaign reports whether segment id of the given generation carries a
// campaign accepted by match.
func (t TargetingState) hasCampaign(generation uint64, id string, match func(*domain.AdCampaign) bool) bool {
	if generation != t.Generation {
		return false
	}
	idx := domain.FindSegment(t.Segments, id)
	if idx < 0 || t.Segments[idx].AdCampaign == nil {
		return false
	}
	return match(t.Segments[idx].AdCampaign)
}

// updateSegment returns a new slice in which only the segment with id has
// been changed by fn. Unknown ids return segments unchanged.
func updateSegment(segments []domain.TargetSegment, id string, fn func(*domain.TargetSegment)) []domain.TargetSegment {
	idx := domain.FindSegment(segments, id)
	if idx < 0 {
		return segments
	}
	next := make([]domain.TargetSegment, len(segments))
	copy(next, segments)
	updated := segments[idx].Clone()
	fn(&updated)
	next[idx] = updated
	return next
}

func appendLog(logs []domain.LogLine, line domain.LogLine) []domain.LogLine {
	limit := constants.SessionLimits.MaxLogLines
	start := 0
	if len(logs)+1 > limit {
		start = len(logs) + 1 - limit
	}
	next := make([]domain.LogLine, 0, len(logs)-start+1)
	next = append(next, logs[start:]...)
	return append(next, line)
}
