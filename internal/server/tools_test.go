package server

import (
	"testing"

	"github.com/ironsheep/rmbg-local/internal/registry"
)

func TestGetToolDefinitions(t *testing.T) {
	tools := GetToolDefinitions()

	expectedTools := []string{
		ToolListModels,
		ToolDescribeModel,
		ToolRemoveBackground,
	}

	if len(tools) != len(expectedTools) {
		t.Fatalf("expected %d tools, got %d", len(expectedTools), len(tools))
	}

	toolMap := make(map[string]Tool)
	for _, tool := range tools {
		toolMap[tool.Name] = tool
	}

	for _, name := range expectedTools {
		if _, ok := toolMap[name]; !ok {
			t.Errorf("Expected tool %s not found", name)
		}
	}
}

func TestToolDefinitions_Structure(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		t.Run(tool.Name, func(t *testing.T) {
			if tool.Description == "" {
				t.Error("Tool description is empty")
			}
			if tool.InputSchema == nil {
				t.Fatal("InputSchema is nil")
			}
			if tool.InputSchema["type"] != "object" {
				t.Errorf("InputSchema type: got %v, want object", tool.InputSchema["type"])
			}
			props, ok := tool.InputSchema["properties"].(map[string]interface{})
			if !ok {
				t.Fatal("InputSchema properties is not a map")
			}

			required, _ := tool.InputSchema["required"].([]string)
			for _, r := range required {
				if _, ok := props[r]; !ok {
					t.Errorf("required property %s is not declared", r)
				}
			}
		})
	}
}

func TestToolDefinitions_ModelEnum(t *testing.T) {
	for _, tool := range GetToolDefinitions() {
		props := tool.InputSchema["properties"].(map[string]interface{})
		model, ok := props["model"].(map[string]interface{})
		if !ok {
			continue
		}
		enum, ok := model["enum"].([]string)
		if !ok {
			t.Fatalf("%s: model enum missing", tool.Name)
		}
		ids := registry.AllIDs()
		if len(enum) != len(ids) {
			t.Fatalf("%s: enum has %d entries, want %d", tool.Name, len(enum), len(ids))
		}
		for i, id := range ids {
			if enum[i] != string(id) {
				t.Errorf("%s: enum[%d] = %s, want %s", tool.Name, i, enum[i], id)
			}
		}
	}
}
