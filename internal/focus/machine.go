package focus

import (
	"math"
	"time"

	"focus-session-service/internal/domain"
)

const (
	// AnalysisInterval is the state machine tick.
	AnalysisInterval = 500 * time.Millisecond

	// ReportInterval is how often the latest state is forwarded to the server.
	ReportInterval = 2 * time.Second

	DecayHeavy  = 14.0
	DecayMedium = 8.0
	Recovery    = 10.0

	YawThreshold = 0.18

	// yawFullSeverity is the |yaw| at which the medium decay applies in full.
	yawFullSeverity = 0.35

	// MissedFramesThreshold consecutive misses before the face counts as lost.
	MissedFramesThreshold = 3

	// BlinkFramesThreshold consecutive low-EAR frames before eyes count as closed.
	BlinkFramesThreshold = 2

	maxScore = 100.0
)

// Causes reported alongside the score.
const (
	CauseInitialising   = "Initialising…"
	CauseCalibrating    = "Calibrating eyes…"
	CauseTabHidden      = "tab hidden"
	CauseNoFace         = "no face detected"
	CauseEyesClosedAway = "Eyes closed & looking away"
	CauseEyesClosed     = "Eyes closed / drowsy"
	CauseLookingAway    = "Looking away"
	CauseFocused        = "Focused"
	CauseVisibilityOnly = "Camera unavailable, tracking tab only"
)

// State is one participant's attention snapshot.
type State struct {
	Score             float64     `json:"score"`
	Cause             string      `json:"cause"`
	IsFaceDetected    bool        `json:"isFaceDetected"`
	IsLookingAway     bool        `json:"isLookingAway"`
	IsEyesClosed      bool        `json:"isEyesClosed"`
	IsTabActive       bool        `json:"isTabActive"`
	MissedFrameStreak int         `json:"missedFrameStreak"`
	LowEARStreak      int         `json:"lowEarStreak"`
	Calibration       Calibration `json:"calibration"`
	EAR               float64     `json:"ear"`
	Yaw               float64     `json:"yaw"`
	Landmarks         *Landmarks  `json:"-"`
}

// NewState is the state at tracking start.
func NewState() State {
	return State{
		Score:       maxScore,
		Cause:       CauseInitialising,
		IsTabActive: true,
	}
}

// Calibrating reports whether the personal threshold is still being collected.
func (s State) Calibrating() bool {
	return !s.Calibration.Complete
}

// Report converts the state into the wire focus_update payload.
func (s State) Report(now time.Time) domain.FocusReport {
	return domain.FocusReport{
		Timestamp:      now.UnixMilli(),
		IsTabActive:    s.IsTabActive,
		IsFaceDetected: s.IsFaceDetected,
		IsLookingAway:  s.IsLookingAway,
		IsEyesClosed:   s.IsEyesClosed,
		Cause:          s.Cause,
		Score:          int(math.Round(s.Score)),
	}
}

// SetTabVisible records a visibility change. No score change happens here;
// hidden ticks decay the score.
func SetTabVisible(s State, visible bool) State {
	s.IsTabActive = visible
	if !visible {
		s.Cause = CauseTabHidden
	}
	return s
}

// TabHidden applies one tick while the host tab is not visible.
func TabHidden(s State) State {
	s.Score = clamp(s.Score - DecayHeavy)
	s.Cause = CauseTabHidden
	return s
}

// Observe applies one tick with a detection result; nil landmarks means no
// face was found. Malformed landmarks return an error and the input state is
// left as is for the caller to keep.
func Observe(s State, lm *Landmarks) (State, error) {
	if lm == nil {
		return missed(s), nil
	}
	sig, err := Extract(*lm)
	if err != nil {
		return s, err
	}

	s.MissedFrameStreak = 0
	s.IsFaceDetected = true
	s.Landmarks = lm
	s.EAR, s.Yaw = sig.EAR, sig.Yaw

	if !s.Calibration.Complete && !s.Calibration.Add(sig.EAR) {
		s.Cause = CauseCalibrating
		return s, nil
	}

	s.IsLookingAway = math.Abs(sig.Yaw) > YawThreshold
	if sig.EAR < s.Calibration.Threshold {
		s.LowEARStreak++
	} else {
		s.LowEARStreak = 0
	}
	s.IsEyesClosed = s.LowEARStreak >= BlinkFramesThreshold

	switch {
	case s.IsEyesClosed && s.IsLookingAway:
		s.Cause = CauseEyesClosedAway
		s.Score = clamp(s.Score - DecayHeavy)
	case s.IsEyesClosed:
		s.Cause = CauseEyesClosed
		s.Score = clamp(s.Score - DecayHeavy)
	case s.IsLookingAway:
		severity := math.Min(1, math.Abs(sig.Yaw)/yawFullSeverity)
		s.Cause = CauseLookingAway
		s.Score = clamp(s.Score - DecayMedium*severity)
	default:
		s.Cause = CauseFocused
		s.Score = clamp(s.Score + Recovery)
	}
	return s, nil
}

func missed(s State) State {
	s.MissedFrameStreak++
	if s.MissedFrameStreak < MissedFramesThreshold {
		return s
	}
	s.IsFaceDetected = false
	s.IsLookingAway = false
	s.IsEyesClosed = false
	s.Landmarks = nil
	s.LowEARStreak = 0
	s.Cause = CauseNoFace
	s.Score = clamp(s.Score - DecayHeavy)
	return s
}

func clamp(score float64) float64 {
	return math.Max(0, math.Min(maxScore, score))
}
