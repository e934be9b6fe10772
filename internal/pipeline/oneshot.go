package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rfpquote/internal"
)

// Input types accepted by ExtractFromInput.
const (
	InputText = "text"
	InputHTML = "html"
	InputXLSX = "xlsx"
	InputPDF  = "pdf"
	InputEML  = "eml"
)

func ExtractFromInput(inputType string, blob []byte) ([]internal.ExtractedLine, error) {
	switch inputType {
	case InputText:
		return ExtractText(string(blob)), nil
	case InputHTML:
		return ExtractHTMLTables(string(blob)), nil
	case InputXLSX:
		return ExtractXLSX(blob)
	case InputPDF:
		return ExtractPDF(blob)
	case InputEML:
		scope, err := ExtractFromEmail(blob)
		if err != nil {
			return nil, err
		}
		return scope.Lines, nil
	default:
		return nil, fmt.Errorf("unsupported input type: %s", inputType)
	}
}

// ExtractFromFile reads path and extracts scope lines. An empty inputType is
// inferred from the file extension.
func ExtractFromFile(path, inputType string) ([]internal.ExtractedLine, error) {
	if inputType == "" {
		inputType = InputTypeFromPath(path)
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ExtractFromInput(inputType, blob)
}

func InputTypeFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return InputHTML
	case ".xlsx":
		return InputXLSX
	case ".pdf":
		return InputPDF
	case ".eml":
		return InputEML
	default:
		return InputText
	}
}
