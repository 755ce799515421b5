package progression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"achievementsAPI/internal/types/progress"
)

func ptr[T any](v T) *T { return &v }

func TestResolve(t *testing.T) {
	tests := []struct {
		name string
		in   Input
		want State
	}{
		{
			name: "zero target finishes on create",
			in:   Input{Target: 0},
			want: State{progress.StatusFinished, 0},
		},
		{
			name: "zero target finishes regardless of step",
			in:   Input{Target: 0, Step: ptr(7)},
			want: State{progress.StatusFinished, 7},
		},
		{
			name: "below target stays in progress",
			in:   Input{Target: 5, Step: ptr(3)},
			want: State{progress.StatusInProgress, 3},
		},
		{
			name: "reaching target finishes",
			in:   Input{Target: 5, Step: ptr(5)},
			want: State{progress.StatusFinished, 5},
		},
		{
			name: "overshoot clamps to target",
			in:   Input{Target: 5, Step: ptr(9)},
			want: State{progress.StatusFinished, 5},
		},
		{
			name: "explicit in progress is derived",
			in:   Input{Target: 5, Step: ptr(6), Requested: ptr(progress.StatusInProgress)},
			want: State{progress.StatusFinished, 5},
		},
		{
			name: "explicit finished at target",
			in:   Input{Target: 5, Step: ptr(8), Requested: ptr(progress.StatusFinished)},
			want: State{progress.StatusFinished, 5},
		},
		{
			name: "explicit finished with zero target",
			in:   Input{Target: 0, Requested: ptr(progress.StatusFinished)},
			want: State{progress.StatusFinished, 0},
		},
		{
			name: "blocked ignores target",
			in:   Input{Target: 5, Step: ptr(9), Requested: ptr(progress.StatusBlocked)},
			want: State{progress.StatusBlocked, 9},
		},
		{
			name: "blocked keeps existing step",
			in: Input{
				Target:    5,
				Requested: ptr(progress.StatusBlocked),
				Existing:  &State{progress.StatusInProgress, 2},
			},
			want: State{progress.StatusBlocked, 2},
		},
		{
			name: "blocked is sticky without explicit status",
			in: Input{
				Target:   5,
				Step:     ptr(5),
				Existing: &State{progress.StatusBlocked, 1},
			},
			want: State{progress.StatusBlocked, 5},
		},
		{
			name: "explicit in progress unblocks",
			in: Input{
				Target:    5,
				Requested: ptr(progress.StatusInProgress),
				Existing:  &State{progress.StatusBlocked, 1},
			},
			want: State{progress.StatusInProgress, 1},
		},
		{
			name: "update keeps existing step when omitted",
			in:   Input{Target: 5, Existing: &State{progress.StatusInProgress, 4}},
			want: State{progress.StatusInProgress, 4},
		},
		{
			name: "lowering step below target reopens",
			in:   Input{Target: 5, Step: ptr(2), Existing: &State{progress.StatusFinished, 5}},
			want: State{progress.StatusInProgress, 2},
		},
		{
			name: "negative target treated as no gate",
			in:   Input{Target: -1},
			want: State{progress.StatusFinished, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveRejectsFinishedBelowTarget(t *testing.T) {
	_, err := Resolve(Input{Target: 5, Step: ptr(3), Requested: ptr(progress.StatusFinished)})

	var notReached *TargetNotReachedError
	require.ErrorAs(t, err, &notReached)
	assert.Equal(t, 3, notReached.Step)
	assert.Equal(t, 5, notReached.Target)
}

func TestResolveFinishedUsesExistingStep(t *testing.T) {
	_, err := Resolve(Input{
		Target:    5,
		Requested: ptr(progress.StatusFinished),
		Existing:  &State{progress.StatusInProgress, 4},
	})
	require.Error(t, err)

	got, err := Resolve(Input{
		Target:    5,
		Requested: ptr(progress.StatusFinished),
		Existing:  &State{progress.StatusInProgress, 5},
	})
	require.NoError(t, err)
	assert.Equal(t, State{progress.StatusFinished, 5}, got)
}

func TestResolveStepTargetGrid(t *testing.T) {
	for target := 1; target <= 6; target++ {
		for step := 0; step <= 10; step++ {
			got, err := Resolve(Input{Target: target, Step: ptr(step)})
			require.NoError(t, err)
			if step < target {
				assert.Equal(t, State{progress.StatusInProgress, step}, got)
			} else {
				assert.Equal(t, State{progress.StatusFinished, target}, got)
			}
		}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	in := Input{Target: 3, Step: ptr(2), Existing: &State{progress.StatusInProgress, 1}}
	first, _ := Resolve(in)
	for i := 0; i < 10; i++ {
		again, _ := Resolve(in)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, 1, in.Existing.Step)
}
