package output

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultPrompt is the instruction sent to the vision model alongside each
// captured frame
const DefaultPrompt = "<|im_start|>system\nYou are a helpful assistant.<|im_end|>\n" +
	"<|im_start|>user\n<image> Analyze the provided image and determine if any of the persons present pose a potential security threat. For example, the person is trying to hide his face, carries a weapon, etc.\n" +
	"Answer Yes or No.<|im_end|>\n" +
	"<|im_start|>assistant\n"

// promptRequest is the JSON document consumed by the vision model service
type promptRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Writer turns a downloaded image into the prompt document for the external
// vision model service: a base64 rendering of the image wrapped in a JSON
// request. Optionally the raw base64 text is kept as a debug artifact.
type Writer struct {
	dir        string
	prompt     string
	saveBase64 bool
}

// NewWriter creates a writer emitting into dir. An empty prompt selects
// DefaultPrompt; saveBase64 additionally writes the bare base64 text file.
func NewWriter(dir, prompt string, saveBase64 bool) *Writer {
	if prompt == "" {
		prompt = DefaultPrompt
	}
	return &Writer{
		dir:        dir,
		prompt:     prompt,
		saveBase64: saveBase64,
	}
}

// Write encodes the image at imagePath and writes prompt_<stem>.json (and,
// when enabled, base64_<stem>.txt) next to it. Returns the prompt document
// path.
func (w *Writer) Write(imagePath, stem string) (string, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(data)

	if w.saveBase64 {
		b64Path := filepath.Join(w.dir, "base64_"+stem+".txt")
		if err := os.WriteFile(b64Path, []byte(encoded), 0o644); err != nil {
			return "", fmt.Errorf("failed to write base64 file: %w", err)
		}
	}

	doc, err := json.MarshalIndent(promptRequest{
		Method: "generate_from_image",
		Params: []string{w.prompt, encoded},
		ID:     42,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal prompt document: %w", err)
	}

	promptPath := filepath.Join(w.dir, "prompt_"+stem+".json")
	if err := os.WriteFile(promptPath, doc, 0o644); err != nil {
		return "", fmt.Errorf("failed to write prompt document: %w", err)
	}
	return promptPath, nil
}
