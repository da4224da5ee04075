package export_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pigeon/internal/catalog"
	"pigeon/internal/export"
)

type stubSupervisor struct {
	export.BaseSupervisor
	matches bool
	recheck bool
	ready   bool
	outputs []export.Output
	calls   *[]string
}

func (s *stubSupervisor) record(name string) {
	if s.calls != nil {
		*s.calls = append(*s.calls, name)
	}
}

func (s *stubSupervisor) MatchesType(catalog.Item) bool {
	s.record("type")
	return s.matches
}

func (s *stubSupervisor) ShouldRecheck(catalog.Item, export.FieldSet) bool {
	s.record("recheck")
	return s.recheck
}

func (s *stubSupervisor) IsReady(catalog.Item) bool {
	s.record("ready")
	return s.ready
}

func (s *stubSupervisor) Outputs(catalog.Item) []export.Output {
	return s.outputs
}

type unknownItem struct{}

func (unknownItem) Kind() catalog.Kind { return catalog.KindUnknown }
func (unknownItem) PK() int64          { return 1 }
func (unknownItem) AppLabel() string   { return "misc" }

func factoryFor(sup *stubSupervisor) export.SupervisorFactory {
	return func() export.Supervisor { return sup }
}

func TestDispatcherRegister(t *testing.T) {
	d := export.NewDispatcher("partner", nil)

	require.NoError(t, d.Register(catalog.KindStory, factoryFor(&stubSupervisor{matches: true})))
	require.NoError(t, d.Register(catalog.KindPhoto, factoryFor(&stubSupervisor{matches: true})))

	assert.Error(t, d.Register(catalog.KindStory, factoryFor(&stubSupervisor{})), "duplicate kind")
	assert.Error(t, d.Register(catalog.KindPhoto, nil), "nil factory")
	assert.Equal(t, []catalog.Kind{catalog.KindStory, catalog.KindPhoto}, d.Kinds())
	assert.Equal(t, "partner", d.Name())
}

func TestDispatcherSelectUnknownItem(t *testing.T) {
	d := export.NewDispatcher("partner", nil)
	require.NoError(t, d.Register(catalog.KindStory, factoryFor(&stubSupervisor{matches: true})))

	testCases := []struct {
		name string
		item catalog.Item
	}{
		{name: "unregistered kind", item: &catalog.Photo{ID: 3}},
		{name: "unknown item type", item: unknownItem{}},
		{name: "nil item", item: nil},
		{name: "nil story pointer", item: (*catalog.Story)(nil)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			sup, err := d.Select(tc.item)
			assert.Nil(t, sup)
			require.ErrorIs(t, err, export.ErrNoSupervisor)

			var nse *export.NoSupervisorError
			require.ErrorAs(t, err, &nse)
			assert.Equal(t, "partner", nse.Configuration)
		})
	}
}

func TestDispatcherSelectSkipsSupervisorRefusingType(t *testing.T) {
	d := export.NewDispatcher("partner", nil)
	require.NoError(t, d.Register(catalog.KindStory, factoryFor(&stubSupervisor{matches: false})))

	_, err := d.Select(&catalog.Story{ID: 1})
	assert.ErrorIs(t, err, export.ErrNoSupervisor)
}

func TestDispatcherEvaluateShortCircuits(t *testing.T) {
	testCases := []struct {
		name     string
		sup      stubSupervisor
		export   bool
		reason   string
		expected []string
	}{
		{
			name:     "type mismatch stops evaluation",
			sup:      stubSupervisor{matches: false, recheck: true, ready: true},
			reason:   "type",
			expected: []string{"type"},
		},
		{
			name:     "no relevant update skips readiness",
			sup:      stubSupervisor{matches: true, recheck: false, ready: true},
			reason:   "updates",
			expected: []string{"type", "recheck"},
		},
		{
			name:     "not ready",
			sup:      stubSupervisor{matches: true, recheck: true, ready: false},
			reason:   "state",
			expected: []string{"type", "recheck", "ready"},
		},
		{
			name:     "exported",
			sup:      stubSupervisor{matches: true, recheck: true, ready: true},
			export:   true,
			expected: []string{"type", "recheck", "ready"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls []string
			sup := tc.sup
			d := export.NewDispatcher("partner", nil)
			require.NoError(t, d.Register(catalog.KindStory, func() export.Supervisor {
				// Select itself calls MatchesType once; only record evaluation.
				calls = nil
				sup.calls = &calls
				return &selectPassthrough{stubSupervisor: &sup}
			}))

			decision, err := d.Evaluate(&catalog.Story{ID: 1}, export.NewFieldSet("title"))
			require.NoError(t, err)
			assert.Equal(t, tc.export, decision.Export())
			assert.Equal(t, tc.reason, decision.Reason())
			assert.Equal(t, tc.expected, calls)
		})
	}
}

// selectPassthrough lets Select pick the supervisor whatever its MatchesType
// answer, so the evaluation order can be observed on its own.
type selectPassthrough struct {
	*stubSupervisor
	selected bool
}

func (s *selectPassthrough) MatchesType(item catalog.Item) bool {
	if !s.selected {
		s.selected = true
		return true
	}
	return s.stubSupervisor.MatchesType(item)
}

func TestDispatcherExportable(t *testing.T) {
	d := export.NewDispatcher("partner", nil)
	require.NoError(t, d.Register(catalog.KindStory, factoryFor(&stubSupervisor{matches: true, recheck: false, ready: true})))
	require.NoError(t, d.Register(catalog.KindPhoto, factoryFor(&stubSupervisor{matches: true, ready: false})))

	ok, err := d.Exportable(&catalog.Story{ID: 1})
	require.NoError(t, err)
	assert.True(t, ok, "recheck is ignored for related items")

	ok, err = d.Exportable(&catalog.Photo{ID: 2})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = d.Exportable(unknownItem{})
	assert.ErrorIs(t, err, export.ErrNoSupervisor)
}

type fixedOutput struct {
	name string
	err  error
}

func (o fixedOutput) FinalFileName() string          { return o.name }
func (o fixedOutput) RelativeFinalDirectory() string { return "out" }

func (o fixedOutput) Render(context.Context) (*export.Artifact, error) {
	if o.err != nil {
		return nil, o.err
	}
	return &export.Artifact{Directory: "out", FileName: o.name, Content: []byte(o.name), Valid: true}, nil
}

func TestDispatcherBuildIsolatesFailures(t *testing.T) {
	boom := errors.New("boom")
	sup := &stubSupervisor{
		matches: true,
		outputs: []export.Output{
			fixedOutput{name: "a.xml"},
			fixedOutput{name: "b.xml", err: boom},
			fixedOutput{name: "c.xml"},
		},
	}
	d := export.NewDispatcher("partner", nil)
	require.NoError(t, d.Register(catalog.KindStory, factoryFor(sup)))

	results, err := d.Build(context.Background(), &catalog.Story{ID: 1})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.ErrorIs(t, results[1].Err, boom)
	assert.True(t, results[2].OK())
	assert.Equal(t, "out/c.xml", results[2].Artifact.Path())
}

func TestDispatcherBuildUnknownItem(t *testing.T) {
	d := export.NewDispatcher("partner", nil)

	results, err := d.Build(context.Background(), &catalog.Photo{ID: 1})
	assert.Nil(t, results)
	assert.ErrorIs(t, err, export.ErrNoSupervisor)
}

type relatedSupervisor struct {
	stubSupervisor
	related []catalog.Item
	err     error
}

func (s *relatedSupervisor) RelatedItems(context.Context, catalog.Item) ([]catalog.Item, error) {
	return s.related, s.err
}

func TestDispatcherRelated(t *testing.T) {
	photo := &catalog.Photo{ID: 9}
	d := export.NewDispatcher("partner", nil)
	require.NoError(t, d.Register(catalog.KindStory, func() export.Supervisor {
		return &relatedSupervisor{stubSupervisor: stubSupervisor{matches: true}, related: []catalog.Item{photo}}
	}))
	require.NoError(t, d.Register(catalog.KindPhoto, factoryFor(&stubSupervisor{matches: true})))

	related, err := d.Related(context.Background(), &catalog.Story{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, []catalog.Item{photo}, related)

	related, err = d.Related(context.Background(), photo)
	require.NoError(t, err)
	assert.Empty(t, related, "base supervisor has no related items")
}

func TestDispatcherConcurrentEvaluation(t *testing.T) {
	d := export.NewDispatcher("partner", nil)
	require.NoError(t, d.Register(catalog.KindStory, func() export.Supervisor {
		return &stubSupervisor{matches: true, recheck: true, ready: true}
	}))

	var wg sync.WaitGroup
	decisions := make([]export.Decision, 32)
	for i := range decisions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decisions[i], _ = d.Evaluate(&catalog.Story{ID: int64(i + 1)}, export.NewFieldSet("workflow_state"))
		}()
	}
	wg.Wait()

	for _, decision := range decisions {
		assert.True(t, decision.Export())
	}
}
