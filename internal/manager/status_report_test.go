package manager

import (
	"testing"

	"promptd/internal/locator"
	"promptd/internal/runner"
)

func TestStatusProjection(t *testing.T) {
	h := newHarness(t, nil)
	h.makeReady(t, nativeDesc())
	if _, err := h.m.RequestCompletion(testCtx(t), "hi", promptCtx()).Collect(); err != nil {
		t.Fatal(err)
	}
	st := h.m.Status()
	if st.Selected != "tiny" || st.Active != "tiny" || st.Strategy != "server" {
		t.Fatalf("status = %+v", st)
	}
	if len(st.Models) != 2 || st.Models[0].State != "ready" {
		t.Fatalf("models = %+v", st.Models)
	}
	if st.IdleTimeoutSeconds != 3600 || st.Inflight != 0 {
		t.Fatalf("idle=%d inflight=%d", st.IdleTimeoutSeconds, st.Inflight)
	}
	if st.Server != nil {
		t.Fatalf("fake runner reports no server, got %+v", st.Server)
	}
}

func TestSanityCheck(t *testing.T) {
	h := newHarness(t, nil)
	r := h.m.SanityCheck()
	if !r.OK || r.Strategy != "server" || r.ModelsDir != h.st.Root() {
		t.Fatalf("report = %+v", r)
	}
	if len(r.Binaries) != 4 {
		t.Fatalf("binaries = %+v", r.Binaries)
	}
	for _, b := range r.Binaries {
		switch locator.Role(b.Role) {
		case locator.RoleServer, locator.RoleCLI:
			if !b.Found || b.Path == "" {
				t.Fatalf("%s = %+v", b.Role, b)
			}
		default:
			if b.Found || b.Hint == "" {
				t.Fatalf("%s = %+v", b.Role, b)
			}
		}
	}

	h2 := newHarness(t, func(c *ManagerConfig) {
		c.Strategy = runner.StrategyCLI
		c.Locator = fakeBins{}
	})
	if r := h2.m.SanityCheck(); r.OK {
		t.Fatalf("report = %+v", r)
	}
}
