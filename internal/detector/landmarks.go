// Package detector finds hand landmarks in camera images and turns them into
// fingertip positions.
package detector

import "math"

// Hand landmark indices following the MediaPipe hand model.
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Handedness labels as reported by MediaPipe. The model labels hands as seen
// by a mirrored selfie camera, so a "Left" hand is the typist's right hand
// when the camera faces them.
const (
	HandLeft  = "Left"
	HandRight = "Right"
)

// tipDigits maps each fingertip landmark to the digit letter used in finger ids.
var tipDigits = [...]struct {
	index int
	digit byte
}{
	{ThumbTip, 't'},
	{IndexTip, 'i'},
	{MiddleTip, 'm'},
	{RingTip, 'r'},
	{PinkyTip, 'p'},
}

// Point3D is a landmark in normalised image coordinates: X and Y in 0..1,
// Z relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks are the 21 landmarks of one detected hand.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"`
	Score      float64               `json:"score"`
}

// Pixel is an integer image position.
type Pixel struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Distance returns the Euclidean distance between two pixels.
func (p Pixel) Distance(q Pixel) float64 {
	dx := float64(p.X - q.X)
	dy := float64(p.Y - q.Y)
	return math.Sqrt(dx*dx + dy*dy)
}

// Fingertip is one fingertip located in an image, labelled with a finger id
// such as "ri".
type Fingertip struct {
	Finger string `json:"finger"`
	At     Pixel  `json:"at"`
}

// PixelAt converts landmark idx to pixel coordinates of a w×h image,
// truncating like an integer cast.
func (hl *HandLandmarks) PixelAt(idx, w, h int) Pixel {
	p := hl.Points[idx]
	return Pixel{X: int(p.X * float64(w)), Y: int(p.Y * float64(h))}
}

// HandPrefix returns the finger id prefix for the hand: the mirrored label,
// so a model "Left" hand is the typist's right ('r').
func (hl *HandLandmarks) HandPrefix() byte {
	if hl.Handedness == HandLeft {
		return 'r'
	}
	return 'l'
}

// Fingertips returns the five fingertips of the hand in pixel coordinates
// of a w×h image, thumb first.
func (hl *HandLandmarks) Fingertips(w, h int) []Fingertip {
	prefix := hl.HandPrefix()
	tips := make([]Fingertip, 0, len(tipDigits))
	for _, td := range tipDigits {
		tips = append(tips, Fingertip{
			Finger: string([]byte{prefix, td.digit}),
			At:     hl.PixelAt(td.index, w, h),
		})
	}
	return tips
}

// Closest returns the fingertip nearest to target across all hands. The
// second result is false when there are no hands.
func Closest(hands []HandLandmarks, w, h int, target Pixel) (Fingertip, float64, bool) {
	var (
		best     Fingertip
		bestDist float64
		found    bool
	)
	for i := range hands {
		for _, tip := range hands[i].Fingertips(w, h) {
			d := tip.At.Distance(target)
			if !found || d < bestDist {
				best, bestDist, found = tip, d, true
			}
		}
	}
	return best, bestDist, found
}
