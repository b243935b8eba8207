package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/sitescope/pkg/provider/stt"
	sttmock "github.com/MrWong99/sitescope/pkg/provider/stt/mock"
)

func TestFailover_Routing(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		failing map[string]bool
		want    string
		wantErr bool
	}{
		{name: "primary healthy", want: "primary"},
		{name: "primary down", failing: map[string]bool{"primary": true}, want: "secondary"},
		{name: "all down", failing: map[string]bool{"primary": true, "secondary": true}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			f := NewFailover("primary", "primary", BreakerConfig{MaxFailures: 3})
			f.Add("secondary", "secondary")

			got, err := Call(context.Background(), f, func(_ context.Context, v string) (string, error) {
				if tc.failing[v] {
					return "", errTest
				}
				return v, nil
			})
			if tc.wantErr {
				if !errors.Is(err, ErrAllFailed) || !errors.Is(err, errTest) {
					t.Fatalf("err = %v, want ErrAllFailed wrapping the provider error", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("served by %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFailover_SkipsOpenCircuit(t *testing.T) {
	t.Parallel()
	f := NewFailover("primary", "primary", BreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour})
	f.Add("secondary", "secondary")

	var calls []string
	call := func(_ context.Context, v string) error {
		calls = append(calls, v)
		if v == "primary" {
			return errTest
		}
		return nil
	}
	for range 2 {
		if err := f.Do(context.Background(), call); err != nil {
			t.Fatalf("Do: %v", err)
		}
	}
	if f.States()["primary"] != StateOpen {
		t.Fatalf("primary state = %v, want open", f.States()["primary"])
	}

	calls = nil
	if err := f.Do(context.Background(), call); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if len(calls) != 1 || calls[0] != "secondary" {
		t.Errorf("calls = %v, want only secondary", calls)
	}
	if !f.Available() {
		t.Error("Available() = false with a healthy secondary")
	}
}

func TestFailover_StopsOnCancelledContext(t *testing.T) {
	t.Parallel()
	f := NewFailover("primary", 1, BreakerConfig{})
	f.Add("secondary", 2)

	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	err := f.Do(ctx, func(ctx context.Context, _ int) error {
		calls++
		cancel()
		return ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if f.States()["primary"] != StateClosed {
		t.Error("cancellation counted against the primary")
	}
}

func TestTranscribers_StartStream(t *testing.T) {
	t.Parallel()
	cfg := stt.StreamConfig{SampleRate: 16000, Channels: 1, Language: "en-US"}

	t.Run("primary", func(t *testing.T) {
		t.Parallel()
		primary := &sttmock.Provider{}
		secondary := &sttmock.Provider{}
		tr := NewTranscribers("primary", primary, BreakerConfig{MaxFailures: 3})
		tr.Add("secondary", secondary)

		h, err := tr.StartStream(context.Background(), cfg)
		if err != nil {
			t.Fatalf("StartStream: %v", err)
		}
		defer h.Close()
		if len(primary.StartStreamCalls) != 1 || len(secondary.StartStreamCalls) != 0 {
			t.Errorf("calls = %d/%d, want 1/0", len(primary.StartStreamCalls), len(secondary.StartStreamCalls))
		}
		if primary.StartStreamCalls[0].Cfg.Language != "en-US" {
			t.Error("stream config not forwarded")
		}
	})

	t.Run("failover", func(t *testing.T) {
		t.Parallel()
		sess := sttmock.NewSession(stt.Transcript{Text: "frame the wall", IsFinal: true})
		primary := &sttmock.Provider{StartStreamErr: errTest}
		secondary := &sttmock.Provider{Session: sess}
		tr := NewTranscribers("primary", primary, BreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
		tr.Add("secondary", secondary)

		h, err := tr.StartStream(context.Background(), cfg)
		if err != nil {
			t.Fatalf("StartStream: %v", err)
		}
		if h != sess {
			t.Error("expected the secondary session")
		}
		if tr.States()["primary"] != StateOpen {
			t.Errorf("primary state = %v, want open", tr.States()["primary"])
		}
		if err := tr.Check(context.Background()); err != nil {
			t.Errorf("Check: %v", err)
		}
	})

	t.Run("all down", func(t *testing.T) {
		t.Parallel()
		tr := NewTranscribers("primary", &sttmock.Provider{StartStreamErr: errTest}, BreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour})
		tr.Add("secondary", &sttmock.Provider{StartStreamErr: errTest})

		if _, err := tr.StartStream(context.Background(), cfg); !errors.Is(err, ErrAllFailed) {
			t.Fatalf("err = %v, want ErrAllFailed", err)
		}
		if err := tr.Check(context.Background()); err == nil {
			t.Error("Check should fail with every circuit open")
		}
	})
}
