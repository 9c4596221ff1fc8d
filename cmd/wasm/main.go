//go:build js && wasm

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"syscall/js"

	"github.com/MeKo-Tech/noisemix/internal/compose"
)

// GenerateRequest represents a field generation request from JS.
type GenerateRequest struct {
	Composition string  `json:"composition"`
	X           float32 `json:"x"`
	Y           float32 `json:"y"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
}

// generateField is called from JavaScript with a JSON GenerateRequest. It
// returns the normalized samples with their pre-normalization range.
func generateField(this js.Value, args []js.Value) interface{} {
	if len(args) < 1 {
		return map[string]interface{}{"error": "missing arguments"}
	}

	var req GenerateRequest
	if err := json.Unmarshal([]byte(args[0].String()), &req); err != nil {
		return map[string]interface{}{"error": fmt.Sprintf("failed to parse request: %v", err)}
	}

	cfg, err := compose.Decode([]byte(req.Composition))
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	// WASM runs on a single thread.
	engine, err := compose.NewEngine(cfg, compose.Options{Workers: 1})
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}
	res, err := engine.Generate(context.Background(), compose.Region{
		X:      req.X,
		Y:      req.Y,
		Width:  req.Width,
		Height: req.Height,
	})
	if err != nil {
		return map[string]interface{}{"error": err.Error()}
	}

	values := make([]interface{}, len(res.Values))
	for i, v := range res.Values {
		values[i] = float64(v)
	}
	return map[string]interface{}{
		"width":      res.Width,
		"height":     res.Height,
		"values":     values,
		"min":        float64(res.Raw.Min),
		"max":        float64(res.Raw.Max),
		"degenerate": res.Degenerate(),
	}
}

func main() {
	c := make(chan struct{})

	js.Global().Set("noisemixGenerate", js.FuncOf(generateField))

	fmt.Println("noisemix WASM module loaded")
	<-c
}
