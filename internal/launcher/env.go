package launcher

import "strings"

// strippedEnvVars are launcher-internal variables that make spawned
// GUI-toolkit child applications misbehave when inherited (Electron children
// rendering blank, Node flags leaking into unrelated runtimes).
var strippedEnvVars = map[string]struct{}{
	"ELECTRON_RUN_AS_NODE":       {},
	"ELECTRON_NO_ATTACH_CONSOLE": {},
	"NODE_OPTIONS":               {},
}

const strippedEnvPrefix = "APPDOCK_"

// sanitizedEnv returns a copy of env without the launcher-internal variables.
func sanitizedEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, kv := range env {
		name, _, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, strip := strippedEnvVars[name]; strip {
			continue
		}
		if strings.HasPrefix(name, strippedEnvPrefix) {
			continue
		}
		out = append(out, kv)
	}
	return out
}
