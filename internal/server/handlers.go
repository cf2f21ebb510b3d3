package server

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ironsheep/rmbg-local/internal/engine"
	"github.com/ironsheep/rmbg-local/internal/imaging"
	"github.com/ironsheep/rmbg-local/internal/pipeline"
	"github.com/ironsheep/rmbg-local/internal/registry"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "remove_background").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`

	// Meta carries the optional progress token.
	Meta *RequestMeta `json:"_meta,omitempty"`
}

// RequestMeta is the _meta object of an MCP request.
type RequestMeta struct {
	// ProgressToken, when present, asks for notifications/progress messages
	// tagged with this value.
	ProgressToken interface{} `json:"progressToken,omitempty"`
}

// ProgressParams is the payload of a notifications/progress message.
type ProgressParams struct {
	ProgressToken interface{} `json:"progressToken"`
	Progress      float64     `json:"progress"`
	Total         float64     `json:"total"`
	Message       string      `json:"message,omitempty"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	var progress engine.ProgressFunc
	if params.Meta != nil && params.Meta.ProgressToken != nil {
		progress = s.progressNotifier(params.Meta.ProgressToken)
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments, progress)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// progressNotifier turns download progress into notifications/progress
// messages for token.
func (s *Server) progressNotifier(token interface{}) engine.ProgressFunc {
	return func(fraction float64) {
		msg := "downloading model weights"
		if fraction >= 1 {
			msg = "model weights ready"
		}
		s.notify("notifications/progress", ProgressParams{
			ProgressToken: token,
			Progress:      fraction,
			Total:         1,
			Message:       msg,
		})
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage, progress engine.ProgressFunc) (interface{}, error) {
	switch name {
	case ToolListModels:
		return s.handleListModels()
	case ToolDescribeModel:
		return s.handleDescribeModel(args)
	case ToolRemoveBackground:
		return s.handleRemoveBackground(ctx, args, progress)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// Panics are suppressed; on marshal failure, returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments; absent arguments decode as {}.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// === Model Handlers ===

// ModelInfo is a registry entry as reported to clients.
type ModelInfo struct {
	registry.Descriptor
	Loaded bool `json:"loaded"`
}

// ListModelsResult is the result of list_models.
type ListModelsResult struct {
	Models       []ModelInfo `json:"models"`
	Current      string      `json:"current,omitempty"`
	DefaultModel string      `json:"default_model"`
}

func (s *Server) handleListModels() (interface{}, error) {
	current, loaded := s.pipeline.Session.Current()

	res := &ListModelsResult{
		Current:      string(current),
		DefaultModel: string(s.defaultModel),
	}
	for _, d := range registry.All() {
		res.Models = append(res.Models, ModelInfo{
			Descriptor: d,
			Loaded:     loaded && d.ID == current,
		})
	}
	return res, nil
}

type describeModelArgs struct {
	Model string `json:"model"`
}

func (s *Server) handleDescribeModel(args json.RawMessage) (interface{}, error) {
	var a describeModelArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	id, err := registry.Parse(a.Model)
	if err != nil {
		return nil, err
	}
	d, err := registry.Describe(id)
	if err != nil {
		return nil, err
	}
	current, loaded := s.pipeline.Session.Current()
	return &ModelInfo{Descriptor: d, Loaded: loaded && current == id}, nil
}

// === Background Removal Handler ===

type removeBackgroundArgs struct {
	Path        string `json:"path"`
	Model       string `json:"model"`
	OutputPath  string `json:"output_path"`
	Matte       string `json:"matte"`
	Crop        bool   `json:"crop"`
	CropPadding int    `json:"crop_padding"`
	Inline      bool   `json:"inline"`
}

// RemoveBackgroundResult is the result of remove_background.
type RemoveBackgroundResult struct {
	RequestID      string                    `json:"request_id"`
	OutputPath     string                    `json:"output_path"`
	Width          int                       `json:"width"`
	Height         int                       `json:"height"`
	Model          string                    `json:"model"`
	ModelName      string                    `json:"model_name"`
	SigmoidApplied bool                      `json:"sigmoid_applied"`
	InferenceMS    int64                     `json:"inference_ms"`
	Foreground     *imaging.ForegroundResult `json:"foreground"`
	Warning        string                    `json:"warning,omitempty"`
	Image          *imaging.EncodedImage     `json:"image,omitempty"`
}

func (s *Server) handleRemoveBackground(ctx context.Context, args json.RawMessage, progress engine.ProgressFunc) (interface{}, error) {
	var a removeBackgroundArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if strings.TrimSpace(a.Path) == "" {
		return nil, fmt.Errorf("path is required")
	}

	id := s.defaultModel
	if a.Model != "" {
		parsed, err := registry.Parse(a.Model)
		if err != nil {
			return nil, err
		}
		id = parsed
	}

	out := a.OutputPath
	if out == "" {
		out = imaging.DefaultOutputPath(a.Path)
	}
	if err := imaging.ValidateOutputName(out); err != nil {
		return nil, err
	}

	src, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}

	res, err := s.pipeline.RemoveBackground(ctx, id, src, pipeline.Options{
		Progress:    progress,
		Matte:       a.Matte,
		Crop:        a.Crop,
		CropPadding: a.CropPadding,
	})
	if err != nil {
		return nil, err
	}

	if err := res.Save(out); err != nil {
		return nil, err
	}

	result := &RemoveBackgroundResult{
		RequestID:      res.RequestID,
		OutputPath:     out,
		Width:          res.Width,
		Height:         res.Height,
		Model:          string(res.Model.ID),
		ModelName:      res.Model.DisplayName,
		SigmoidApplied: res.Mask.SigmoidApplied,
		InferenceMS:    res.InferenceTime.Milliseconds(),
		Foreground:     res.Foreground,
	}
	if a.Matte == "" && !imaging.SupportsAlpha(out) {
		result.Warning = fmt.Sprintf("%s cannot store transparency; pass a matte colour or use a .png output", filepath.Ext(out))
	}
	if !res.Foreground.Found {
		result.Warning = strings.TrimSpace(result.Warning + " no foreground was found above the alpha threshold")
	}
	if a.Inline {
		result.Image = imaging.WrapPNG(res.PNG, res.Width, res.Height)
	}
	return result, nil
}
