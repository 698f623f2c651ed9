package execution

import (
	"fmt"

	"github.com/PaesslerAG/jsonpath"

	"github.com/hanzoai/node/internal/external"
	"github.com/hanzoai/node/internal/svcerr"
)

// requiredParamPaths reads the JSONPath expressions a tool's input schema
// declares as mandatory (spec §6 input_schema). Absent or malformed
// declarations impose no requirement.
func requiredParamPaths(schema map[string]interface{}) []string {
	raw, ok := schema["required_paths"].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if s, ok := p.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// validateParameters checks every required_paths JSONPath expression
// resolves against parameters, failing fast on the first miss so a tool
// never starts executing against an incomplete invocation.
func validateParameters(tool external.ToolRecord, parameters map[string]interface{}) error {
	for _, path := range requiredParamPaths(tool.InputSchema) {
		if _, err := jsonpath.Get(path, map[string]interface{}(parameters)); err != nil {
			return svcerr.New(svcerr.KindExecutionFailure,
				fmt.Sprintf("tool %q: required parameter path %q not satisfied", tool.ToolKey, path), 400)
		}
	}
	return nil
}
