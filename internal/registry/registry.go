// Package registry lists the segmentation models the background remover can use.
//
// The table is fixed at build time. Each entry carries everything the pipeline
// needs to fetch the weights and to shape the input tensor: the weight URL, the
// square input resolution and the normalization family the model was trained
// with.
package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ModelType identifies a model in the registry.
type ModelType string

// Known models, in display order.
const (
	U2NetP    ModelType = "u2netp"
	Silueta   ModelType = "silueta"
	RMBGQuant ModelType = "rmbg_quant"
	RMBGFP16  ModelType = "rmbg_fp16"
	RMBGFull  ModelType = "rmbg_full"
)

// Normalization selects how 8-bit channel values become tensor values.
type Normalization string

const (
	// NormalizationImageNet standardizes v/255 with the ImageNet channel mean and std.
	NormalizationImageNet Normalization = "imagenet"
	// NormalizationUnit maps v to v/255.
	NormalizationUnit Normalization = "unit"
)

// ErrUnknownModel is returned for ids that are not in the registry.
var ErrUnknownModel = errors.New("unknown model")

// Descriptor is the immutable metadata of one model.
type Descriptor struct {
	ID            ModelType     `json:"id"`
	DisplayName   string        `json:"display_name"`
	URL           string        `json:"url"`
	InputSize     int           `json:"input_size"`
	Normalization Normalization `json:"normalization"`
}

const (
	sharedRepo = "https://huggingface.co/robertwt7/bg-remover-models/resolve/main/onnx/"
	rmbgRepo   = "https://huggingface.co/briaai/RMBG-1.4/resolve/main/onnx/"
)

var descriptors = []Descriptor{
	{U2NetP, "Fast (u2netp)", sharedRepo + "u2netp.onnx", 320, NormalizationImageNet},
	{Silueta, "Balanced (silueta)", sharedRepo + "silueta.onnx", 320, NormalizationImageNet},
	{RMBGQuant, "Ultra Quant (RMBG)", rmbgRepo + "model_quantized.onnx", 1024, NormalizationUnit},
	{RMBGFP16, "Ultra FP16 (RMBG)", rmbgRepo + "model_fp16.onnx", 1024, NormalizationUnit},
	{RMBGFull, "Ultra Full (RMBG)", rmbgRepo + "model.onnx", 1024, NormalizationUnit},
}

var byID = func() map[ModelType]Descriptor {
	m := make(map[ModelType]Descriptor, len(descriptors))
	for _, d := range descriptors {
		m[d.ID] = d
	}
	return m
}()

// Describe returns the descriptor for id.
func Describe(id ModelType) (Descriptor, error) {
	d, ok := byID[id]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownModel, string(id))
	}
	return d, nil
}

// AllIDs returns every model id in display order.
func AllIDs() []ModelType {
	ids := make([]ModelType, len(descriptors))
	for i, d := range descriptors {
		ids[i] = d.ID
	}
	return ids
}

// All returns a copy of every descriptor in display order.
func All() []Descriptor {
	out := make([]Descriptor, len(descriptors))
	copy(out, descriptors)
	return out
}

// Parse converts user input such as "U2NetP" or " rmbg_full " to a known id.
func Parse(s string) (ModelType, error) {
	id := ModelType(strings.ToLower(strings.TrimSpace(s)))
	if _, err := Describe(id); err != nil {
		return "", err
	}
	return id, nil
}

// Default is the model used when the caller does not pick one.
func Default() ModelType { return U2NetP }
