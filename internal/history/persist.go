package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// writeDocument writes atomically: temp file in the same directory, then
// rename, so a crash mid-write never corrupts the previous snapshot.
func writeDocument(path string, doc document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("error encoding history: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("error creating history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".netwatch-*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp history file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("error writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error closing history file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("error replacing history file: %w", err)
	}
	return nil
}

func readDocument(path string) (document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return document{}, fmt.Errorf("error reading history file: %w", err)
	}
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return document{}, fmt.Errorf("error parsing history file: %w", err)
	}
	return doc, nil
}
