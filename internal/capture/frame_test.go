package capture

import (
	"sync"
	"testing"
	"time"
)

func TestStore_ReadEmpty(t *testing.T) {
	s := NewStore()

	if _, ok := s.Read(); ok {
		t.Error("Read() on empty store should report no frame")
	}
	if s.Writes() != 0 {
		t.Errorf("Writes() = %d, want 0", s.Writes())
	}
}

func TestStore_LastWriterWins(t *testing.T) {
	s := NewStore()
	t0 := time.Now()

	s.Write(Frame{Data: []byte("first"), CapturedAt: t0})
	s.Write(Frame{Data: []byte("second"), CapturedAt: t0.Add(time.Millisecond)})

	got, ok := s.Read()
	if !ok {
		t.Fatal("Read() reported no frame after writes")
	}
	if string(got.Data) != "second" {
		t.Errorf("Read() data = %q, want second", got.Data)
	}
	if s.Writes() != 2 {
		t.Errorf("Writes() = %d, want 2", s.Writes())
	}
}

func TestStore_IgnoresEmptyFrames(t *testing.T) {
	s := NewStore()
	s.Write(Frame{Data: []byte("good")})
	s.Write(Frame{})

	got, ok := s.Read()
	if !ok || string(got.Data) != "good" {
		t.Errorf("Read() = %q, %v; want good, true", got.Data, ok)
	}
	if got.CapturedAt.IsZero() {
		t.Error("Write() should stamp frames that have no capture time")
	}
}

func TestStore_ConcurrentReadersAndWriters(t *testing.T) {
	s := NewStore()

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s.Write(Frame{Data: []byte{byte(w), byte(i)}})
			}
		}(w)
	}
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if f, ok := s.Read(); ok && len(f.Data) != 2 {
					t.Errorf("torn frame: %v", f.Data)
					return
				}
			}
		}()
	}
	wg.Wait()

	if s.Writes() != 800 {
		t.Errorf("Writes() = %d, want 800", s.Writes())
	}
}
