package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestFeed_OpenFailure(t *testing.T) {
	cam := NewMockCamera(nil, false)
	cam.FailOpen(errors.New("no device"))

	feed := NewFeed(cam, nil, NewStore(), FeedConfig{})
	if err := feed.Run(context.Background()); err == nil {
		t.Fatal("Run() should fail when the camera cannot be opened")
	}
	if feed.Running() {
		t.Error("Running() should be false after a failed start")
	}
}

func TestFeed_PublishesOnChange(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	black := gocv.NewMatWithSize(60, 80, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(60, 80, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	cam := NewMockCamera([]*gocv.Mat{&black, &black, &white, &white}, false)
	if err := cam.Open(); err != nil {
		t.Fatal(err)
	}
	store := NewStore()
	feed := NewFeed(cam, NewMotionDetector(1.0), store, FeedConfig{RefreshInterval: time.Hour})

	now := time.Now()
	for i := 0; i < 4; i++ {
		if err := feed.step(now.Add(time.Duration(i) * time.Millisecond)); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}

	// first black (no baseline) and first white (changed)
	if got := feed.Published(); got != 2 {
		t.Errorf("Published() = %d, want 2", got)
	}
	if _, ok := store.Read(); !ok {
		t.Error("store should hold a frame")
	}

	if err := feed.step(now); !errors.Is(err, ErrNoMoreImages) {
		t.Errorf("step after sequence = %v, want ErrNoMoreImages", err)
	}
}

func TestFeed_RefreshesStaleFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	img := gocv.NewMatWithSize(60, 80, gocv.MatTypeCV8UC3)
	defer img.Close()

	cam := NewMockCamera([]*gocv.Mat{&img}, true)
	cam.Open()
	feed := NewFeed(cam, NewMotionDetector(1.0), NewStore(), FeedConfig{RefreshInterval: time.Second})

	now := time.Now()
	feed.step(now)
	feed.step(now.Add(100 * time.Millisecond))
	feed.step(now.Add(1500 * time.Millisecond))

	if got := feed.Published(); got != 2 {
		t.Errorf("Published() = %d, want 2 (initial + refresh)", got)
	}
}

func TestFeed_RunUntilCancelled(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	img := gocv.NewMatWithSize(60, 80, gocv.MatTypeCV8UC3)
	defer img.Close()

	cam := NewMockCamera([]*gocv.Mat{&img}, true)
	store := NewStore()
	feed := NewFeed(cam, nil, store, FeedConfig{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- feed.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for store.Writes() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !feed.Running() {
		t.Error("Running() should be true while the feed runs")
	}
	cancel()

	if err := <-done; err != nil {
		t.Errorf("Run() = %v, want nil on cancel", err)
	}
	if store.Writes() < 3 {
		t.Errorf("Writes() = %d, want at least 3", store.Writes())
	}
	if feed.Running() {
		t.Error("Running() should be false after Run returns")
	}
	if cam.IsOpen() {
		t.Error("camera should be closed after Run returns")
	}
}
