package eventlog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/analytics-capture/internal/models"
)

func eventsNamed(names ...string) []models.Event {
	out := make([]models.Event, len(names))
	for i, n := range names {
		out[i] = models.Event{Name: n, Properties: map[string]interface{}{"i": i}}
	}
	return out
}

func TestProperty_SnapshotIsConcatenationInAppendOrder(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("snapshot equals appended batches in order", prop.ForAll(
		func(batches [][]string) bool {
			l := New()
			var want []string
			for _, b := range batches {
				l.Append(eventsNamed(b...)...)
				want = append(want, b...)
			}
			snap := l.Snapshot()
			if len(snap) != len(want) {
				return false
			}
			for i, e := range snap {
				if e.Name != want[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.SliceOf(gen.AlphaString())),
	))

	properties.Property("clear then snapshot is empty", prop.ForAll(
		func(names []string) bool {
			l := New()
			l.Append(eventsNamed(names...)...)
			l.Clear()
			return len(l.Snapshot()) == 0 && l.Len() == 0
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

func TestClearIsIdempotent(t *testing.T) {
	l := New()
	l.Append(eventsNamed("a", "b")...)

	l.Clear()
	once := l.Snapshot()
	l.Clear()
	twice := l.Snapshot()

	assert.Empty(t, once)
	assert.Equal(t, once, twice)
	assert.Equal(t, Stats{Current: 0, TotalAdded: 2, Clears: 1}, l.Stats())
}

func TestAppendAfterClear(t *testing.T) {
	l := New()
	l.Append(eventsNamed("a")...)
	l.Clear()
	l.Append(eventsNamed("b")...)

	snap := l.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "b", snap[0].Name)
}

func TestAppendAfterClose(t *testing.T) {
	l := New()
	require.True(t, l.Append(eventsNamed("a")...))
	l.Close()

	assert.False(t, l.Append(eventsNamed("b")...))
	assert.Empty(t, l.Snapshot())
	assert.Equal(t, Stats{Current: 0, TotalAdded: 1, Clears: 1}, l.Stats())
}

func TestAppendNothing(t *testing.T) {
	l := New()
	l.Append()
	assert.Equal(t, 0, l.Len())
	assert.NotNil(t, l.Snapshot())
}

func TestEventsAreImmutableOnceAppended(t *testing.T) {
	l := New()
	in := models.Event{Name: "signup", Properties: map[string]interface{}{"plan": "pro"}}
	l.Append(in)

	in.Properties["plan"] = "free"
	snap := l.Snapshot()
	snap[0].Properties["plan"] = "enterprise"
	snap[0].Name = "renamed"

	fresh := l.Snapshot()
	assert.Equal(t, "signup", fresh[0].Name)
	assert.Equal(t, "pro", fresh[0].Properties["plan"])
}

func TestConcurrentAppendAndSnapshot(t *testing.T) {
	l := New()
	const writers, perWriter = 8, 200

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				l.Append(models.Event{Name: fmt.Sprintf("w%d-%d", w, i)})
			}
		}(w)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		prev := 0
		for prev < writers*perWriter {
			n := len(l.Snapshot())
			if n < prev {
				t.Errorf("snapshot shrank from %d to %d", prev, n)
				return
			}
			prev = n
		}
	}()

	wg.Wait()
	<-done

	// per-writer order must be preserved
	next := make(map[string]int)
	for _, e := range l.Snapshot() {
		var w, i int
		_, err := fmt.Sscanf(e.Name, "w%d-%d", &w, &i)
		require.NoError(t, err)
		key := fmt.Sprint(w)
		assert.Equal(t, next[key], i, "writer %d out of order", w)
		next[key] = i + 1
	}
	assert.Equal(t, writers*perWriter, l.Len())
}
