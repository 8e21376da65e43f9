package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// profileFile is the YAML document shape for a shipped profile.
//
// Example:
//
//	vendor_id: "_TZE200_cwbvmsar"
//	model_id: "TS0601"
//	capabilities: [measure_temperature, measure_humidity, measure_battery]
//	datapoints:
//	  1:
//	    capability: measure_temperature
//	    rule:
//	      kind: divisor
//	      divisor: 10
//	      valid_range: {min: -40, max: 125}
//	      typical_range: {min: -10, max: 40}
//	      candidate_divisors: [100, 10]
type profileFile struct {
	VendorID string  `yaml:"vendor_id"`
	ModelID  string  `yaml:"model_id"`
	Profile  Profile `yaml:",inline"`
}

// LoadDir reads every *.yaml / *.yml file in dir and registers the
// contained profiles.
//
// Files are loaded in lexical order so later files deterministically
// overwrite earlier registrations of the same fingerprint. A missing
// directory is not an error (zero profiles shipped); an unreadable or
// unparsable file is, wrapped as ErrLoadFailed.
//
// Returns the number of profiles registered.
func LoadDir(registry *Registry, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: reading %s: %w", ErrLoadFailed, dir, err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext == ".yaml" || ext == ".yml" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	count := 0
	for _, name := range names {
		path := filepath.Join(dir, name)
		n, err := loadFile(registry, path)
		if err != nil {
			return count, err
		}
		count += n
	}
	return count, nil
}

// loadFile parses one YAML file, which may hold a single profile
// document or a stream of documents separated by "---".
func loadFile(registry *Registry, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: reading %s: %w", ErrLoadFailed, path, err)
	}

	count := 0
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc profileFile
		if err := decoder.Decode(&doc); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return count, fmt.Errorf("%w: parsing %s: %w", ErrLoadFailed, path, err)
		}

		fp := Fingerprint{VendorID: doc.VendorID, ModelID: doc.ModelID}
		if err := registry.Register(fp, &doc.Profile); err != nil {
			return count, fmt.Errorf("%w: %s: %w", ErrLoadFailed, path, err)
		}
		count++
	}
	return count, nil
}
