package manager

import (
	"promptd/internal/locator"
	"promptd/internal/runner"
	"promptd/pkg/types"
)

var sanityRoles = []locator.Role{locator.RoleCLI, locator.RoleServer, locator.RoleQuantizer, locator.RoleConverter}

// SanityCheck reports which llama.cpp tools can be found. It does not
// mutate state and is safe to call at any time.
func (m *Manager) SanityCheck() types.SanityReport {
	r := types.SanityReport{
		Strategy:           string(m.strategy),
		InProcessAvailable: runner.InProcessAvailable,
		ModelsDir:          m.store.Root(),
	}
	needed := locator.Role("")
	switch m.strategy {
	case runner.StrategyCLI:
		needed = locator.RoleCLI
	case runner.StrategyServer:
		needed = locator.RoleServer
	default:
		r.OK = runner.InProcessAvailable
	}
	for _, role := range sanityRoles {
		p, ok := m.locator.Resolve(role)
		c := types.BinaryCheck{Role: string(role), Found: ok}
		if ok {
			c.Path = p
		} else {
			c.Hint = locator.Hint(role)
		}
		if role == needed {
			r.OK = ok
		}
		r.Binaries = append(r.Binaries, c)
	}
	return r
}
