package provider

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// adapterFile is the YAML layout of an adapter definition file:
//
//	adapters:
//	  - id: runway-2024-11-06
//	    base_url: https://api.dev.runwayml.com
//	    submit_path: /v1/image_to_video
//	    ...
type adapterFile struct {
	Adapters []Adapter `yaml:"adapters"`
}

// LoadFile reads adapter definitions from a YAML file
func LoadFile(path string) ([]Adapter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open adapter file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load decodes and validates adapter definitions. Unknown keys are rejected
// so a typo in a field name does not silently fall back to nothing.
func Load(r io.Reader) ([]Adapter, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file adapterFile
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("adapter file is empty")
		}
		return nil, fmt.Errorf("failed to decode adapter file: %w", err)
	}
	if len(file.Adapters) == 0 {
		return nil, errors.New("adapter file defines no adapters")
	}

	for _, a := range file.Adapters {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}
	return file.Adapters, nil
}
