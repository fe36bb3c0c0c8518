package planner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ChrisB0-2/euicc-gate/internal/core"
	"github.com/ChrisB0-2/euicc-gate/internal/logger"
)

// mockLookup serves fixed statuses; names in errs fail with that error.
type mockLookup struct {
	status map[string]core.PackageStatus
	errs   map[string]error
	calls  []string
}

func (m *mockLookup) Lookup(_ context.Context, name string) (core.PackageStatus, error) {
	m.calls = append(m.calls, name)
	if err, ok := m.errs[name]; ok {
		return core.PackageStatus{}, err
	}
	return m.status[name], nil
}

// mockRegistry implements core.PackageRegistry for RegistryLookup.
type mockRegistry struct {
	pkgs map[string]bool
}

func (m *mockRegistry) GetPackageInfo(_ context.Context, name string) (core.PackageInfo, error) {
	enabled, ok := m.pkgs[name]
	if !ok {
		return core.PackageInfo{}, fmt.Errorf("%s: %w", name, core.ErrPackageNotFound)
	}
	return core.PackageInfo{Name: name, Enabled: enabled}, nil
}

func (m *mockRegistry) SetApplicationEnabledSetting(context.Context, string, core.EnabledState, int) error {
	return nil
}

func TestBuildPlanMapsDecisionToState(t *testing.T) {
	p := NewSimple()
	targets := []string{"com.google.android.euicc"}

	tests := []struct {
		disable bool
		want    core.EnabledState
	}{
		{true, core.StateDisabled},
		{false, core.StateEnabled},
	}
	for _, tt := range tests {
		plan, err := p.BuildPlan(context.Background(), targets, core.Decision{Disable: tt.disable}, nil)
		if err != nil {
			t.Fatalf("BuildPlan error: %v", err)
		}
		if len(plan) != 1 {
			t.Fatalf("expected 1 plan item, got %d", len(plan))
		}
		if plan[0].Desired != tt.want {
			t.Errorf("disable=%v: expected %s, got %s", tt.disable, tt.want, plan[0].Desired)
		}
		if plan[0].CurrentKnown {
			t.Error("expected CurrentKnown=false without lookup")
		}
	}
}

func TestBuildPlanKeepsTargetOrder(t *testing.T) {
	p := NewSimple()
	targets := []string{"c.c", "a.a", "b.b"}

	plan, err := p.BuildPlan(context.Background(), targets, core.Decision{Disable: true}, nil)
	if err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}
	for i, want := range targets {
		if plan[i].Package != want {
			t.Errorf("item %d: expected %s, got %s", i, want, plan[i].Package)
		}
	}
}

func TestBuildPlanReadsCurrentStatus(t *testing.T) {
	lk := &mockLookup{
		status: map[string]core.PackageStatus{"a.a": {Installed: true, Enabled: true}},
		errs: map[string]error{
			"b.b": core.ErrPackageNotFound,
			"c.c": errors.New("binder died"),
		},
	}
	p := NewSimple()

	plan, err := p.BuildPlan(context.Background(), []string{"a.a", "b.b", "c.c"}, core.Decision{Disable: true}, lk.Lookup)
	if err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}

	if !plan[0].CurrentKnown || !plan[0].Current.Usable() {
		t.Errorf("a.a: expected known usable status, got %+v", plan[0])
	}
	if !plan[1].CurrentKnown || plan[1].Current.Installed {
		t.Errorf("b.b: expected known not-installed status, got %+v", plan[1])
	}
	if plan[2].CurrentKnown {
		t.Errorf("c.c: expected unknown status after error, got %+v", plan[2])
	}
	for _, it := range plan {
		if it.Desired != core.StateDisabled {
			t.Errorf("%s: failed read must not change desired state, got %s", it.Package, it.Desired)
		}
	}
}

func TestBuildPlanContextCancellation(t *testing.T) {
	p := NewSimple()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.BuildPlan(ctx, []string{"a.a"}, core.Decision{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestBuildPlanEmptyTargets(t *testing.T) {
	plan, err := NewSimple().BuildPlan(context.Background(), nil, core.Decision{Disable: true}, nil)
	if err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}
	if len(plan) != 0 {
		t.Errorf("expected empty plan, got %d items", len(plan))
	}
}

func TestBuildPlanLogs(t *testing.T) {
	var buf bytes.Buffer
	p := NewSimpleWithLogger(logger.New(logger.LevelDebug, &buf))

	if _, err := p.BuildPlan(context.Background(), []string{"a.a"}, core.Decision{Disable: true}, nil); err != nil {
		t.Fatalf("BuildPlan error: %v", err)
	}
	if !strings.Contains(buf.String(), "plan built") {
		t.Errorf("expected plan built log, got: %s", buf.String())
	}
}

func TestRegistryLookup(t *testing.T) {
	lookup := RegistryLookup(&mockRegistry{pkgs: map[string]bool{"a.a": false}})

	st, err := lookup(context.Background(), "a.a")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !st.Installed || st.Enabled {
		t.Errorf("expected installed disabled, got %+v", st)
	}

	if _, err := lookup(context.Background(), "b.b"); !errors.Is(err, core.ErrPackageNotFound) {
		t.Errorf("expected ErrPackageNotFound, got %v", err)
	}
}
