package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns preset hands. It is safe for concurrent use.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a MockDetector that finds no hands.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that Detect returns.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError makes Detect fail with err.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect ran.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockDetector) Detect(img *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

func (m *MockDetector) Close() error {
	return nil
}

// HomeRowHand returns a hand resting on the home row. Fingertips are spread
// 0.05 apart horizontally starting at pinkyX, thumb below the others.
// Handedness is the raw model label.
func HomeRowHand(handedness string, pinkyX float64) HandLandmarks {
	h := HandLandmarks{Handedness: handedness, Score: 0.95}

	dir := 1.0
	if handedness == HandLeft {
		// model "Left" is the typist's right hand: pinky on the far right
		dir = -1.0
	}
	at := func(step float64) float64 { return pinkyX + dir*step*0.05 }

	h.Points[Wrist] = Point3D{X: at(2), Y: 0.85}
	h.Points[PinkyMCP] = Point3D{X: at(0), Y: 0.65}
	h.Points[PinkyTip] = Point3D{X: at(0), Y: 0.50}
	h.Points[RingMCP] = Point3D{X: at(1), Y: 0.63}
	h.Points[RingTip] = Point3D{X: at(1), Y: 0.48}
	h.Points[MiddleMCP] = Point3D{X: at(2), Y: 0.62}
	h.Points[MiddleTip] = Point3D{X: at(2), Y: 0.46}
	h.Points[IndexMCP] = Point3D{X: at(3), Y: 0.63}
	h.Points[IndexTip] = Point3D{X: at(3), Y: 0.48}
	h.Points[ThumbMCP] = Point3D{X: at(3.5), Y: 0.72}
	h.Points[ThumbTip] = Point3D{X: at(4), Y: 0.62}
	return h
}
