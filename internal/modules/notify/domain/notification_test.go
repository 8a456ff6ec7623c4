package domain_test

import (
	"strings"
	"testing"

	"focuskit/internal/modules/notify/domain"
	"focuskit/internal/modules/notify/dto"
)

func TestRenderCompleted(t *testing.T) {
	t.Parallel()
	msg, err := domain.Render(dto.NotifyInput{Kind: dto.KindCompleted, ElapsedSeconds: 1500, TaskRef: "write-report"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if msg.Kind != domain.KindCompleted || msg.Title != "Focus session complete" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.Body != "25 minutes of focus (write-report)" {
		t.Fatalf("unexpected body %q", msg.Body)
	}
}

func TestRenderStartedAndError(t *testing.T) {
	t.Parallel()
	started, err := domain.Render(dto.NotifyInput{Kind: dto.KindStarted, TargetSeconds: 1500})
	if err != nil {
		t.Fatalf("render started: %v", err)
	}
	if !strings.HasPrefix(started.Body, "25:00") {
		t.Fatalf("expected clock in body, got %q", started.Body)
	}
	failed, err := domain.Render(dto.NotifyInput{Kind: dto.KindError, Detail: "disk full", TaskRef: "ignored"})
	if err != nil {
		t.Fatalf("render error: %v", err)
	}
	if failed.Body != "disk full" {
		t.Fatalf("unexpected error body %q", failed.Body)
	}
	if _, err := domain.Render(dto.NotifyInput{Kind: "tick"}); err == nil {
		t.Fatalf("expected unknown kind to fail")
	}
}

func TestClock(t *testing.T) {
	t.Parallel()
	cases := map[int64]string{-5: "00:00", 0: "00:00", 59: "00:59", 1500: "25:00", 3725: "1:02:05"}
	for in, want := range cases {
		if got := domain.Clock(in); got != want {
			t.Fatalf("Clock(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestManifestValidate(t *testing.T) {
	t.Parallel()
	valid := domain.Manifest{
		Name:    "desktop",
		Version: "1.0.0",
		Binary:  "/bin/desktop",
		SHA256:  strings.Repeat("a", 64),
		Kinds:   []domain.Kind{domain.KindCompleted},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid manifest: %v", err)
	}
	if valid.Accepts(domain.KindStarted) || !valid.Accepts(domain.KindCompleted) {
		t.Fatalf("kind filter not applied")
	}

	bad := valid
	bad.SHA256 = "ABC"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected bad checksum format to fail")
	}
	dup := valid
	dup.Kinds = []domain.Kind{domain.KindError, domain.KindError}
	if err := dup.Validate(); err == nil {
		t.Fatalf("expected duplicate kinds to fail")
	}
	all := valid
	all.Kinds = nil
	if !all.Accepts(domain.KindStarted) {
		t.Fatalf("empty kinds should accept everything")
	}
}
