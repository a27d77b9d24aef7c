package recognizer

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

func parseVoskResult(raw string) (voskResult, error) {
	var r voskResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return voskResult{}, fmt.Errorf("parse vosk result: %w", err)
	}
	return r, nil
}

// voskLanguageAliases maps BCP 47 primary subtags to the tag used in
// published model directory names where they differ.
var voskLanguageAliases = map[string]string{
	"zh": "cn",
}

// modelSupportsLocale matches the locale against the language embedded in a
// published model directory name such as vosk-model-small-en-us-0.15.
// Directories that do not follow that naming are assumed to match.
func modelSupportsLocale(modelPath, locale string) bool {
	base := strings.ToLower(filepath.Base(filepath.Clean(modelPath)))
	if !strings.HasPrefix(base, "vosk-model-") {
		return true
	}
	primary := strings.ToLower(strings.SplitN(strings.ReplaceAll(locale, "_", "-"), "-", 2)[0])
	if primary == "" {
		return false
	}
	if alias, ok := voskLanguageAliases[primary]; ok {
		primary = alias
	}
	for _, part := range strings.Split(strings.TrimPrefix(base, "vosk-model-"), "-") {
		if part == primary {
			return true
		}
	}
	return false
}
