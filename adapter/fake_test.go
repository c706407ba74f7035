package adapter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/hugr-lab/opal-airport/opal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type pageCall struct {
	Offset int
	Limit  int
}

// fakeRemote serves canned Opal responses and counts calls.
type fakeRemote struct {
	mu sync.Mutex

	datasources    []opal.Datasource
	datasourcesErr error
	variables      map[string][]opal.Variable
	variablesErr   error
	entities       map[string]int
	languages      []string
	taxonomies     []opal.Taxonomy
	projects       []opal.Project
	databases      []opal.Database
	plugins        *opal.PluginPackages

	// A non-nil gate blocks the call until it is closed. entered receives
	// one signal per blocked call.
	datasourceGate chan struct{}
	variableGate   chan struct{}
	entered        chan struct{}

	datasourceCalls int
	variableCalls   int
	confCalls       int
	taxonomyCalls   int
	pageCalls       []pageCall
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		variables: make(map[string][]opal.Variable),
		entities:  make(map[string]int),
		languages: []string{"en", "fr"},
		plugins:   &opal.PluginPackages{},
	}
}

func (f *fakeRemote) ListDatasources(ctx context.Context) ([]opal.Datasource, error) {
	f.mu.Lock()
	f.datasourceCalls++
	f.mu.Unlock()
	if err := f.wait(ctx, f.datasourceGate); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.datasourcesErr != nil {
		return nil, f.datasourcesErr
	}
	return f.datasources, nil
}

func (f *fakeRemote) ListVariables(ctx context.Context, ds, table string) ([]opal.Variable, error) {
	f.mu.Lock()
	f.variableCalls++
	f.mu.Unlock()
	if err := f.wait(ctx, f.variableGate); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.variablesErr != nil {
		return nil, f.variablesErr
	}
	vars, ok := f.variables[ds+"."+table]
	if !ok {
		return nil, &opal.StatusError{Resource: fmt.Sprintf("'%s.%s' variables", ds, table), StatusCode: 404}
	}
	return vars, nil
}

// ListValueSets generates entity e<N> with value "<variable>-<N>" for every
// variable. Like the Opal client, a limit <= 0 ignores the offset.
func (f *fakeRemote) ListValueSets(_ context.Context, ds, table string, offset, limit int) (*opal.ValueSets, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls = append(f.pageCalls, pageCall{Offset: offset, Limit: limit})

	key := ds + "." + table
	vars := f.variables[key]
	total := f.entities[key]
	end := total
	if limit <= 0 {
		offset = 0
	} else if offset+limit < total {
		end = offset + limit
	}

	page := &opal.ValueSets{EntityType: "Participant"}
	for _, v := range vars {
		page.Variables = append(page.Variables, v.Name)
	}
	for n := offset; n < end; n++ {
		set := opal.ValueSet{Identifier: fmt.Sprintf("e%d", n)}
		for _, v := range vars {
			set.Values = append(set.Values, opal.Value{Value: fmt.Sprintf("%s-%d", v.Name, n)})
		}
		page.ValueSets = append(page.ValueSets, set)
	}
	return page, nil
}

func (f *fakeRemote) GeneralConf(context.Context) (*opal.GeneralConf, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confCalls++
	return &opal.GeneralConf{Name: "Opal", Languages: f.languages}, nil
}

func (f *fakeRemote) ListTaxonomies(context.Context) ([]opal.Taxonomy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taxonomyCalls++
	return f.taxonomies, nil
}

func (f *fakeRemote) ListProjects(context.Context) ([]opal.Project, error) {
	return f.projects, nil
}

func (f *fakeRemote) ListDatabases(context.Context) ([]opal.Database, error) {
	return f.databases, nil
}

func (f *fakeRemote) PluginPackages(context.Context) (*opal.PluginPackages, error) {
	return f.plugins, nil
}

func (f *fakeRemote) wait(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeRemote) counts() (datasources, variables int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.datasourceCalls, f.variableCalls
}

func (f *fakeRemote) calls() []pageCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pageCall(nil), f.pageCalls...)
}

// cohortRemote has one datasource with a participants table.
func cohortRemote(entities int) *fakeRemote {
	f := newFakeRemote()
	f.datasources = []opal.Datasource{{Name: "Cohort", Table: []string{"Participants"}}}
	f.variables["Cohort.Participants"] = []opal.Variable{
		{Name: "AGE", EntityType: "Participant", ValueType: "integer", Index: 0},
		{Name: "SEX", EntityType: "Participant", ValueType: "text", Index: 1},
	}
	f.entities["Cohort.Participants"] = entities
	return f
}

func newTestAdapter(t interface{ Fatalf(string, ...any) }, remote Remote, opts Options) *Adapter {
	if opts.Logger == nil {
		opts.Logger = testLogger()
	}
	a, err := New(remote, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}
