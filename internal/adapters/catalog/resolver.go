package catalog

import "context"

// Resolver looks up artists by name. The result is keyed by
// model.NormalizeKey of each found name.
type Resolver interface {
	Lookup(ctx context.Context, names []string) (map[string]Artist, error)
}
