package assets

// Resolver maps a source file name to the URL it is served at.
type Resolver interface {
	Asset(source string) string
}

type manifestResolver struct {
	manifest *Manifest
	prefix   string
}

// NewResolver creates a Resolver that prepends prefix to the names in m.
//
//	resolver := assets.NewResolver(bundle.Manifest(), "/geo/_assets/")
//	resolver.Asset("wiki.css") // "/geo/_assets/wiki.3f2a9c1d.css"
func NewResolver(m *Manifest, prefix string) Resolver {
	return &manifestResolver{
		manifest: m,
		prefix:   prefix,
	}
}

func (r *manifestResolver) Asset(source string) string {
	return r.prefix + r.manifest.Resolve(source)
}
