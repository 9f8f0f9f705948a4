package model

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestDescriptorNormalize(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("fills identifiers and defaults", func(t *testing.T) {
		// --- Arrange ---
		d := &Descriptor{
			Tasks:  []*Task{{Name: "a"}, {ID: "keep", Name: "b"}},
			Blocks: []*Block{{Tasks: []*Task{{Name: "c"}}}},
			Preconditions: []*Precondition{
				{Packages: []string{"gcc"}},
			},
		}

		// --- Act ---
		d.Normalize(sequentialIDs(), now)

		// --- Assert ---
		assert.Equal(t, "id-1", d.ID)
		assert.Equal(t, "id-1", d.Name)
		assert.Equal(t, now, d.CreatedAt)
		assert.Equal(t, "id-2", d.Tasks[0].ID)
		assert.Equal(t, "keep", d.Tasks[1].ID)
		assert.Equal(t, "id-3", d.Blocks[0].ID)
		assert.Equal(t, "id-3", d.Blocks[0].Name, "block name defaults to its id")
		assert.Equal(t, 1, d.Blocks[0].Repeat)
		assert.Equal(t, "precondition-0", d.Preconditions[0].Name)
	})

	t.Run("sequential block chains parentless tasks", func(t *testing.T) {
		d := &Descriptor{Blocks: []*Block{{
			Name:       "seq",
			Sequential: true,
			Tasks: []*Task{
				{Name: "first"},
				{Name: "second"},
				{Name: "third", Parents: []string{"first"}},
				{Name: "fourth"},
			},
		}}}

		d.Normalize(sequentialIDs(), now)

		tasks := d.Blocks[0].Tasks
		assert.Empty(t, tasks[0].Parents)
		assert.Equal(t, []string{"first"}, tasks[1].Parents)
		assert.Equal(t, []string{"first"}, tasks[2].Parents, "declared parents are kept")
		assert.Equal(t, []string{"third"}, tasks[3].Parents)
	})

	t.Run("all tasks lists block tasks after top-level tasks", func(t *testing.T) {
		d := &Descriptor{
			Tasks:  []*Task{{Name: "a"}},
			Blocks: []*Block{{Tasks: []*Task{{Name: "b"}, {Name: "c"}}}},
		}
		var names []string
		for _, task := range d.AllTasks() {
			names = append(names, task.Name)
		}
		assert.Equal(t, []string{"a", "b", "c"}, names)
	})
}

func TestTaskDefaults(t *testing.T) {
	assert.Equal(t, DefaultTimeout, (&Task{}).EffectiveTimeout())
	assert.Equal(t, time.Minute, (&Task{Timeout: time.Minute}).EffectiveTimeout())

	assert.True(t, FileBinding{Source: "https://example.com/x"}.Downloadable())
	assert.True(t, FileBinding{Source: "HTTP://example.com/x"}.Downloadable())
	assert.False(t, FileBinding{Source: "/local/path"}.Downloadable())
	assert.False(t, FileBinding{}.Downloadable())
}

func TestStatusTypeText(t *testing.T) {
	b, err := StatusCancelled.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "CANCELLED", string(b))

	var s StatusType
	require.NoError(t, s.UnmarshalText([]byte("running")))
	assert.Equal(t, StatusRunning, s)
	assert.Error(t, s.UnmarshalText([]byte("bogus")))

	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.Equal(t, "StatusType(42)", StatusType(42).String())
}

func TestTaskOutputChecksum(t *testing.T) {
	out := NewTaskOutput("o1", "job", "task", "exitcode=0\n", time.Now())

	raw, err := out.Decode()
	require.NoError(t, err)
	assert.Equal(t, "exitcode=0\n", raw)
	assert.Len(t, out.Checksum, 64)

	out.Checksum = "00"
	_, err = out.Decode()
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestConfigError(t *testing.T) {
	err := error(&ConfigError{Subject: "task b", Err: ErrUnknownParent})
	assert.ErrorIs(t, err, ErrUnknownParent)
	assert.True(t, IsConfigError(fmt.Errorf("wrapped: %w", err)))
	assert.EqualError(t, err, "configuration error in task b: unknown parent reference")
}
