package cli

import (
	"errors"

	"github.com/roach88/warden/internal/engine"
	"github.com/roach88/warden/internal/rules"
)

// DefaultTenant is the workflow tenant when --tenant is not given.
const DefaultTenant = "default"

// featureTable looks up a feature, reporting unknown names as E202.
func featureTable(f *OutputFormatter, rs *rules.Store, name string) (*engine.Table, error) {
	t, err := rs.Table(name)
	if errors.Is(err, rules.ErrUnknownFeature) {
		return nil, f.Fail(ExitCommandError, ErrCodeUnknown, "unknown feature "+name, nil)
	}
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeGeneric, "failed to load feature", err)
	}
	return t, nil
}
