package mock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/lettersprout/internal/store"
	"github.com/MrWong99/lettersprout/internal/store/mock"
)

func TestStore_DuplicateNickname(t *testing.T) {
	t.Parallel()
	s := mock.New()
	ctx := context.Background()

	if _, err := s.CreateUser(ctx, store.User{Nickname: "mia"}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.CreateUser(ctx, store.User{Nickname: "mia"}); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("err = %v, want ErrDuplicate", err)
	}
	if got := s.CallCount("CreateUser"); got != 2 {
		t.Errorf("CallCount(CreateUser) = %d, want 2", got)
	}
}

func TestStore_MergeProgress(t *testing.T) {
	t.Parallel()
	s := mock.New()
	ctx := context.Background()

	_, _ = s.MergeProgress(ctx, 1, 3, 3, 1)
	p, err := s.MergeProgress(ctx, 1, 3, 1, 2)
	if err != nil {
		t.Fatalf("MergeProgress: %v", err)
	}
	if p.Stage != 3 || p.Score != 2 || !p.Completed {
		t.Errorf("merged = %+v, want stage 3 score 2 completed", p)
	}
}

func TestStore_ListCheckinsNewestFirst(t *testing.T) {
	t.Parallel()
	s := mock.New()
	ctx := context.Background()

	for _, d := range []string{"2026-01-02", "2026-01-04", "2026-01-03"} {
		if _, _, err := s.IncrementCheckin(ctx, 1, d); err != nil {
			t.Fatalf("IncrementCheckin: %v", err)
		}
	}
	got, _ := s.ListCheckins(ctx, 1, 2)
	if len(got) != 2 || got[0].Date != "2026-01-04" || got[1].Date != "2026-01-03" {
		t.Errorf("ListCheckins = %+v", got)
	}
}

func TestStore_InjectedErrors(t *testing.T) {
	t.Parallel()
	s := mock.New()
	boom := errors.New("boom")
	s.PingErr = boom
	s.CreateRecordingErr = boom

	if err := s.Ping(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Ping err = %v", err)
	}
	if _, err := s.CreateRecording(context.Background(), store.Recording{}); !errors.Is(err, boom) {
		t.Errorf("CreateRecording err = %v", err)
	}
	s.Reset()
	if n := len(s.Calls()); n != 0 {
		t.Errorf("Calls after Reset = %d, want 0", n)
	}
}
