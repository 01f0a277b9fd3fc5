package gen

import "slices"

var (
	// TargetGoModels renders Go model structs and enums.
	TargetGoModels = Target{
		Name:        "model:go",
		Description: "Go structs and string enums rendered under models/",
	}

	// TargetTypeScriptModels renders TypeScript interfaces and enums.
	TargetTypeScriptModels = Target{
		Name:        "model:typescript",
		Description: "TypeScript interfaces, string enums and an index barrel under models/",
	}

	// TargetPythonModels renders Python dataclasses and enums.
	TargetPythonModels = Target{
		Name:        "model:python",
		Description: "Python dataclasses, str enums and a package init under models/",
	}

	// TargetAPI renders the combined and per-surface API schemas.
	TargetAPI = Target{
		Name:        "api",
		Description: "GraphQL schema documents with auth directives under graphql/",
	}

	// TargetMapping renders request and response mapping templates.
	TargetMapping = Target{
		Name:        "mapping",
		Description: "Per-operation request/response mapping templates under mapping/",
	}

	// TargetInfra renders storage tables and API constructs.
	TargetInfra = Target{
		Name:        "infra",
		Description: "Table and API constructs plus create-table descriptors under infra/",
	}

	// AllTargets holds all targets, in emission order.
	AllTargets = []Target{
		TargetGoModels,
		TargetTypeScriptModels,
		TargetPythonModels,
		TargetAPI,
		TargetMapping,
		TargetInfra,
	}
)

// apiTargets render the parts of the deployed API: the schema, its
// resolvers and the API constructs wiring them. They must agree on the
// entities they cover.
var apiTargets = []string{TargetAPI.Name, TargetMapping.Name, TargetInfra.Name}

// Target is a category of output artifacts, rendered by one emitter.
type Target struct {
	// Name of the target, as used in configuration files.
	Name string

	// A Description of the rendered artifacts.
	Description string
}

// TargetByName returns the target with the given name.
func TargetByName(name string) (Target, bool) {
	i := slices.IndexFunc(AllTargets, func(t Target) bool { return t.Name == name })
	if i < 0 {
		return Target{}, false
	}
	return AllTargets[i], true
}

// TargetNames returns the names of all targets.
func TargetNames() []string {
	names := make([]string, len(AllTargets))
	for i, t := range AllTargets {
		names[i] = t.Name
	}
	return names
}

// servesAPI reports whether the named target renders part of the deployed
// API.
func servesAPI(name string) bool { return slices.Contains(apiTargets, name) }
