package recipe

// BuildEnvMember pairs a resolved package with the components of it the
// build actually uses (spec.md §4.8; grounded on build_env.rs's
// BuildEnvMember trait).
type BuildEnvMember struct {
	Package        Package
	UsedComponents ComponentSet
}

// BuildEnv describes a resolved build environment: the package being built
// against it, the full option set, and every dependency package placed to
// satisfy its build requirements (spec.md §4.8; grounded on build_env.rs's
// BuildEnv trait, narrowed from a generic trait to a concrete struct since
// this implementation has exactly one Package/BuildEnvMember type).
type BuildEnv struct {
	Target  VersionIdent
	Options OptionMap
	Members []BuildEnvMember
}

// Member finds a build environment member by package name (spec.md §4.8;
// grounded on build_env.rs's BuildEnv::get_member).
func (e BuildEnv) Member(name string) (BuildEnvMember, bool) {
	for _, m := range e.Members {
		if m.Package.Name() == name {
			return m, true
		}
	}
	return BuildEnvMember{}, false
}
