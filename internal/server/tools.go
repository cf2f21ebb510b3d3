package server

import "github.com/ironsheep/rmbg-local/internal/registry"

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// Tool names.
const (
	ToolListModels       = "list_models"
	ToolDescribeModel    = "describe_model"
	ToolRemoveBackground = "remove_background"
)

func modelIDs() []string {
	ids := registry.AllIDs()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        ToolListModels,
			Description: "List the segmentation models available for background removal, with their input resolution and which one is currently loaded.",
			InputSchema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        ToolDescribeModel,
			Description: "Describe one segmentation model: display name, weight URL, input resolution and normalization.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"model": map[string]interface{}{
						"type":        "string",
						"enum":        modelIDs(),
						"description": "Model id",
					},
				},
				"required": []string{"model"},
			},
		},
		{
			Name: ToolRemoveBackground,
			Description: "Remove the background of an image file and write the result next to it (removed-bg.png by default). " +
				"The first call for a model downloads its weights; later calls reuse the loaded model. " +
				"Returns the output path, the model used, inference time and where the kept subject lies.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": map[string]interface{}{
						"type":        "string",
						"description": "Absolute path to the image file",
					},
					"model": map[string]interface{}{
						"type":        "string",
						"enum":        modelIDs(),
						"description": "Model id. Defaults to the server's default model",
					},
					"output_path": map[string]interface{}{
						"type":        "string",
						"description": "Where to write the result. The extension selects the format; PNG keeps transparency",
					},
					"matte": map[string]interface{}{
						"type":        "string",
						"description": "Optional background colour (#RRGGBB) to flatten the result onto",
					},
					"crop": map[string]interface{}{
						"type":        "boolean",
						"description": "Trim the result to the subject's bounding box",
						"default":     false,
					},
					"crop_padding": map[string]interface{}{
						"type":        "integer",
						"description": "Pixels kept around the subject when cropping",
						"minimum":     0,
						"default":     0,
					},
					"inline": map[string]interface{}{
						"type":        "boolean",
						"description": "Also return the result as base64-encoded PNG",
						"default":     false,
					},
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the tool definitions
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
