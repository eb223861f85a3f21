// Package registry persists trained model bundles on disk. A bundle is a
// directory named by the model id holding a versioned manifest, the model
// spec, fitted encoder state and one serialized booster per model key.
package registry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"paycast/internal/config"
	apperrors "paycast/internal/errors"
	"paycast/internal/forecast"
	"paycast/internal/quantile"
)

// FormatVersion is the bundle layout version. Bump it when the on-disk
// layout changes incompatibly; Load rejects versions it does not know.
const FormatVersion = 1

const (
	manifestFile = "manifest.json"
	specFile     = "spec.json"
	encodersFile = "encoders.json"
	modelsDir    = "models"
)

// Manifest describes a stored bundle
type Manifest struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	FormatVersion int       `json:"format_version"`
	CreatedAt     time.Time `json:"created_at"`
	Targets       []string  `json:"targets"`
	Quantiles     []float64 `json:"quantiles"`
	ModelKeys     []string  `json:"model_keys"`
}

// encoderState holds the fitted encoder parameters that must survive a
// save/load round trip
type encoderState struct {
	DateMin time.Time `json:"date_min"`
	DateMax time.Time `json:"date_max"`
}

// Registry stores model bundles under a base directory
type Registry struct {
	dir    string
	logger *slog.Logger
}

// New creates a registry rooted at dir, creating it if needed
func New(dir string, logger *slog.Logger) (*Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.NewStorageError(fmt.Sprintf("create registry dir %s", dir), err)
	}
	return &Registry{dir: dir, logger: logger}, nil
}

// Save persists a trained forecaster as a new bundle and returns its
// manifest. The bundle is written to a staging directory first and renamed
// into place so readers never see a half-written bundle.
func (r *Registry) Save(f *forecast.Forecaster, name string) (*Manifest, error) {
	if !f.Trained() {
		return nil, apperrors.NewConfigurationError("cannot save an untrained model", nil)
	}

	id := uuid.New().String()
	spec := f.Spec()

	keys := make([]string, 0, len(f.Bank()))
	for key := range f.Bank() {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	manifest := &Manifest{
		ID:            id,
		Name:          name,
		FormatVersion: FormatVersion,
		CreatedAt:     time.Now().UTC(),
		Targets:       spec.Model.Targets,
		Quantiles:     spec.Model.Quantiles,
		ModelKeys:     keys,
	}

	staging := filepath.Join(r.dir, "."+id+".tmp")
	if err := os.MkdirAll(filepath.Join(staging, modelsDir), 0o755); err != nil {
		return nil, apperrors.NewStorageError("create bundle staging dir", err)
	}
	defer os.RemoveAll(staging)

	if err := writeJSON(filepath.Join(staging, manifestFile), manifest); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(staging, specFile), spec); err != nil {
		return nil, err
	}

	dateMin, dateMax := f.NormalizerBounds()
	if err := writeJSON(filepath.Join(staging, encodersFile), encoderState{DateMin: dateMin, DateMax: dateMax}); err != nil {
		return nil, err
	}

	for key, booster := range f.Bank() {
		data, err := quantile.MarshalBooster(booster)
		if err != nil {
			return nil, apperrors.NewStorageError(fmt.Sprintf("serialize model %s", key), err)
		}
		path := filepath.Join(staging, modelsDir, key+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, apperrors.NewStorageError(fmt.Sprintf("write model %s", key), err)
		}
	}

	final := filepath.Join(r.dir, id)
	if err := os.Rename(staging, final); err != nil {
		return nil, apperrors.NewStorageError("finalize bundle", err)
	}

	r.logger.Info("model bundle saved", "id", id, "name", name, "models", len(keys))
	return manifest, nil
}

// Load restores a stored bundle into a ready-to-predict forecaster
func (r *Registry) Load(id string) (*forecast.Forecaster, *Manifest, error) {
	dir := filepath.Join(r.dir, id)
	if _, err := os.Stat(dir); err != nil {
		return nil, nil, apperrors.NewModelNotFoundError(id, err)
	}

	var manifest Manifest
	if err := readJSON(filepath.Join(dir, manifestFile), &manifest); err != nil {
		return nil, nil, err
	}
	if manifest.FormatVersion != FormatVersion {
		return nil, nil, apperrors.NewStorageError(
			fmt.Sprintf("bundle %s has unsupported format version %d", id, manifest.FormatVersion), nil)
	}

	var spec config.ModelSpec
	if err := readJSON(filepath.Join(dir, specFile), &spec); err != nil {
		return nil, nil, err
	}
	spec.ApplyDefaults()
	if err := spec.Validate(); err != nil {
		return nil, nil, apperrors.NewStorageError(fmt.Sprintf("bundle %s spec is invalid", id), err)
	}

	var enc encoderState
	if err := readJSON(filepath.Join(dir, encodersFile), &enc); err != nil {
		return nil, nil, err
	}

	bank := make(map[string]*quantile.Booster, len(manifest.ModelKeys))
	for _, key := range manifest.ModelKeys {
		data, err := os.ReadFile(filepath.Join(dir, modelsDir, key+".json"))
		if err != nil {
			return nil, nil, apperrors.NewStorageError(fmt.Sprintf("read model %s", key), err)
		}
		booster, err := quantile.UnmarshalBooster(data)
		if err != nil {
			return nil, nil, apperrors.NewStorageError(fmt.Sprintf("parse model %s", key), err)
		}
		bank[key] = booster
	}

	f, err := forecast.Restore(&spec, r.logger, enc.DateMin, enc.DateMax, bank)
	if err != nil {
		return nil, nil, err
	}
	return f, &manifest, nil
}

// List returns the manifests of all stored bundles, newest first
func (r *Registry) List() ([]Manifest, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, apperrors.NewStorageError("list registry", err)
	}

	var manifests []Manifest
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name()[0] == '.' {
			continue
		}
		var m Manifest
		if err := readJSON(filepath.Join(r.dir, entry.Name(), manifestFile), &m); err != nil {
			r.logger.Warn("skipping unreadable bundle", "dir", entry.Name(), "error", err)
			continue
		}
		manifests = append(manifests, m)
	}

	sort.Slice(manifests, func(i, j int) bool {
		return manifests[i].CreatedAt.After(manifests[j].CreatedAt)
	})
	return manifests, nil
}

// Delete removes a stored bundle
func (r *Registry) Delete(id string) error {
	dir := filepath.Join(r.dir, id)
	if _, err := os.Stat(dir); err != nil {
		return apperrors.NewModelNotFoundError(id, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("delete bundle %s", id), err)
	}
	r.logger.Info("model bundle deleted", "id", id)
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("marshal %s", filepath.Base(path)), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("write %s", filepath.Base(path)), err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("read %s", filepath.Base(path)), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("parse %s", filepath.Base(path)), err)
	}
	return nil
}
