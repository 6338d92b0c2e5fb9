package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestStageErrorUnwraps(t *testing.T) {
	err := Stage("letter", StagePersist, "letters", fmt.Errorf("%w: duplicate key", ErrPersist))
	if !errors.Is(err, ErrPersist) {
		t.Fatal("expected errors.Is(err, ErrPersist)")
	}
	var se *StageError
	if !errors.As(err, &se) {
		t.Fatal("expected a *StageError")
	}
	if se.Kind != "letter" || se.Table != "letters" {
		t.Errorf("unexpected stage error %+v", se)
	}
	want := "letter pipeline, stage persist, table letters: persistence failed: duplicate key"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestStageNil(t *testing.T) {
	if Stage("word", StageRank, "", nil) != nil {
		t.Error("Stage(nil) must be nil")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("x"), ExitFailure},
		{fmt.Errorf("wrap: %w", ErrInvalidConfig), ExitConfig},
		{ErrSetup, ExitSetup},
		{Stage("word", StageSource, "", ErrSource), ExitSource},
		{Stage("word", StagePersist, "words", ErrPersist), ExitPersist},
		{errors.Join(Stage("word", StagePersist, "words", ErrPersist), Invariantf("rank %d", 3)), ExitInvariant},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
