package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

const (
	// blurKernel is the Gaussian kernel applied before differencing.
	blurKernel = 21
	// pixelDelta is the per-pixel grey level change counted as different.
	pixelDelta = 25
	// DefaultMotionThreshold is the changed-pixel percentage that counts as motion.
	DefaultMotionThreshold = 0.5
)

// MotionDetector decides whether a camera image differs enough from the last
// published image to be worth encoding. Unlike a frame-to-frame differ, the
// baseline only moves when Accept is called, so slow drift accumulates until
// it crosses the threshold.
type MotionDetector struct {
	mu        sync.Mutex
	threshold float64
	baseline  gocv.Mat
	hasBase   bool
}

// NewMotionDetector creates a detector. threshold is the percentage of pixels
// (0..100) that must change; values <= 0 use DefaultMotionThreshold.
func NewMotionDetector(threshold float64) *MotionDetector {
	if threshold <= 0 {
		threshold = DefaultMotionThreshold
	}
	return &MotionDetector{
		threshold: threshold,
		baseline:  gocv.NewMat(),
	}
}

// Changed reports whether img differs from the baseline by more than the
// threshold, and the changed percentage. With no baseline every image counts
// as changed.
func (m *MotionDetector) Changed(img *gocv.Mat) (bool, float64) {
	if img == nil || img.Empty() {
		return false, 0
	}

	grey := prepare(img)
	defer grey.Close()

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.hasBase {
		return true, 100
	}
	if grey.Rows() != m.baseline.Rows() || grey.Cols() != m.baseline.Cols() {
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(grey, m.baseline, &diff)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(diff, &mask, pixelDelta, 255, gocv.ThresholdBinary)

	total := mask.Rows() * mask.Cols()
	if total == 0 {
		return false, 0
	}
	pct := float64(gocv.CountNonZero(mask)) / float64(total) * 100
	return pct > m.threshold, pct
}

// Accept makes img the new baseline.
func (m *MotionDetector) Accept(img *gocv.Mat) {
	if img == nil || img.Empty() {
		return
	}

	grey := prepare(img)
	defer grey.Close()

	m.mu.Lock()
	defer m.mu.Unlock()
	grey.CopyTo(&m.baseline)
	m.hasBase = true
}

// Threshold returns the configured changed-pixel percentage.
func (m *MotionDetector) Threshold() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.threshold
}

// Close releases the baseline. The detector may be reused afterwards and
// treats the next image as changed.
func (m *MotionDetector) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baseline.Close()
	m.baseline = gocv.NewMat()
	m.hasBase = false
}

// prepare converts img to a blurred greyscale Mat owned by the caller.
func prepare(img *gocv.Mat) gocv.Mat {
	grey := gocv.NewMat()
	if img.Channels() > 1 {
		gocv.CvtColor(*img, &grey, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&grey)
	}
	gocv.GaussianBlur(grey, &grey, image.Point{X: blurKernel, Y: blurKernel}, 0, 0, gocv.BorderDefault)
	return grey
}
