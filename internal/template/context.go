package template

import "maps"

// Unit is the manifest data visible to templates as .Unit.
type Unit struct {
	Identifier string
	Version    string
	StartLevel int
	Location   string
}

// Context is the data a template is executed against.
type Context struct {
	Unit       Unit
	Repository string
	Env        map[string]string
}

// MergeEnv merges environment maps. Later maps override earlier ones.
func MergeEnv(envs ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, env := range envs {
		maps.Copy(result, env)
	}
	return result
}
