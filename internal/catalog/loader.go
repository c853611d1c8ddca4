package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader reads the fabric catalog yaml from disk.
type Loader struct {
	filePath string
}

func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Path returns the file the loader reads from.
func (l *Loader) Path() string { return l.filePath }

// Load reads and parses the catalog file. ${VAR} references are expanded
// from the environment so secrets like satellite API URLs can stay out of
// the file.
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes catalog yaml from memory.
func Parse(data []byte) (File, error) {
	expanded := os.ExpandEnv(string(data))

	var file File
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return File{}, fmt.Errorf("failed to parse catalog yaml: %w", err)
	}
	return file, nil
}
