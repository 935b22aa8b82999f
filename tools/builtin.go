package tools

import (
	"github.com/mnemolabs/mnemo/core"
)

// Memory tool names. The gateway routes these internally instead of
// dispatching to an executor; their writes are staged until the turn
// finalizes.
const (
	ToolStorePreference = "store_user_preference"
	ToolStoreFact       = "store_user_fact"
)

// BuiltinDefinitions returns the definitions for the standard tool set:
// computation, a sandboxed workspace, weather lookup, and the two memory
// tools.
func BuiltinDefinitions() []core.ToolDefinition {
	return []core.ToolDefinition{
		{
			Name:        "calculator",
			Description: "Perform basic arithmetic. Supports add, subtract, multiply, and divide on two numbers.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"operation": StringEnumProperty("Arithmetic operation to perform", "add", "subtract", "multiply", "divide"),
				"a":         NumberProperty("First operand"),
				"b":         NumberProperty("Second operand"),
			}, "operation", "a", "b"),
		},
		{
			Name:        "read_file",
			Description: "Read a text file from the agent workspace. Paths are relative to the workspace root.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"path": StringProperty("Relative path of the file to read (e.g. 'notes/todo.txt')"),
			}, "path"),
		},
		{
			Name:        "write_file",
			Description: "Write text to a file in the agent workspace, creating parent directories as needed. Overwrites existing content.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"path":    StringProperty("Relative path of the file to write"),
				"content": StringProperty("Full text content to write"),
			}, "path", "content"),
		},
		{
			Name:        "list_files",
			Description: "List files and directories in the agent workspace.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"path": StringProperty("Optional: relative directory to list (defaults to the workspace root)"),
			}),
		},
		{
			Name:        "get_weather",
			Description: "Get the current weather for a city. Temperatures are returned in Celsius; convert if the user prefers other units.",
			InputSchema: ObjectSchema(map[string]interface{}{
				"city": StringProperty("City name (e.g. 'Miami')"),
			}, "city"),
		},
		{
			Name: ToolStorePreference,
			Description: "Remember a durable user preference as a key/value pair. " +
				"Use when the user states how they want things done (e.g. temperature units, response style).",
			InputSchema: ObjectSchema(map[string]interface{}{
				"key":   StringProperty("Preference key in snake_case (e.g. 'temperature_units')"),
				"value": StringProperty("Preference value (e.g. 'celsius')"),
			}, "key", "value"),
		},
		{
			Name: ToolStoreFact,
			Description: "Remember a freeform fact about the user for future conversations " +
				"(e.g. 'lives in Miami', 'works as a pilot').",
			InputSchema: ObjectSchema(map[string]interface{}{
				"fact_type": StringEnumProperty("Category of the fact", "general", "location", "work", "interest"),
				"content":   StringProperty("The fact, phrased as a short statement"),
			}, "content"),
		},
	}
}
