package types

// SearchProfile is a named bundle of search tuning parameters. Profiles
// are constructed once per query and never mutated. The three field
// weights conventionally sum to 1.0 but that is not enforced.
type SearchProfile struct {
	Name             string
	TopK             int
	ContentWeight    float64
	TitleWeight      float64
	BreadcrumbWeight float64
	EF               int // HNSW search-time exploration factor
}

// ProfileImplementation favors the content field: best for "show me the
// code that does X" queries.
func ProfileImplementation() SearchProfile {
	return SearchProfile{
		Name:             "implementation",
		TopK:             100,
		ContentWeight:    0.7,
		TitleWeight:      0.2,
		BreadcrumbWeight: 0.1,
		EF:               150,
	}
}

// ProfileDebugging weights symbol titles more heavily: best when the
// caller already knows roughly which function is involved.
func ProfileDebugging() SearchProfile {
	return SearchProfile{
		Name:             "debugging",
		TopK:             50,
		ContentWeight:    0.5,
		TitleWeight:      0.4,
		BreadcrumbWeight: 0.1,
		EF:               120,
	}
}

// ProfileExploration casts a wide net with extra breadcrumb weight, for
// orienting in an unfamiliar codebase.
func ProfileExploration() SearchProfile {
	return SearchProfile{
		Name:             "exploration",
		TopK:             200,
		ContentWeight:    0.4,
		TitleWeight:      0.2,
		BreadcrumbWeight: 0.4,
		EF:               200,
	}
}

// ProfileByName resolves a preset by name, falling back to the
// implementation profile for unknown names.
func ProfileByName(name string) SearchProfile {
	switch name {
	case "debugging":
		return ProfileDebugging()
	case "exploration":
		return ProfileExploration()
	default:
		return ProfileImplementation()
	}
}
