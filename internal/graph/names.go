package graph

import "errors"

// ErrInvalidArgument reports a caller-side precondition violation; the
// call had no side effects.
var ErrInvalidArgument = errors.New("invalid argument")

// NodeNames resolves a human-readable name and namespace for every known
// participant. Position 0 is always the local identity, taken from self
// rather than from discovery. Remote participants resolve through their
// announced metadata with the transport display name as fallback; ones
// that still resolve to an empty name are anonymous (non-ROS peers) and
// are dropped from the output while staying in the registry.
//
// names and namespaces must point at empty slices; they are filled as
// equal-length, index-paired results only on success.
func (r *Registry) NodeNames(self Identity, names, namespaces *[]string) error {
	if names == nil || namespaces == nil {
		return ErrInvalidArgument
	}
	if len(*names) != 0 || len(*namespaces) != 0 {
		return ErrInvalidArgument
	}

	parts := r.Participants()
	outNames := make([]string, 1, len(parts)+1)
	outNamespaces := make([]string, 1, len(parts)+1)
	outNames[0] = self.Name
	outNamespaces[0] = self.Namespace

	for _, rec := range parts {
		name := rec.Name
		if name == "" {
			name = rec.DisplayName
		}
		if name == "" {
			continue
		}
		outNames = append(outNames, name)
		outNamespaces = append(outNamespaces, rec.Namespace)
	}

	*names = outNames
	*namespaces = outNamespaces
	return nil
}
