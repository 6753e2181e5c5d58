// Package sidecar reads and writes the JSON descriptor that accompanies
// every backup container: "<image_path>.chronos.json".
package sidecar

import (
	"encoding/json"
	"os"

	"github.com/chronos-imaging/chronos/cerrors"
	log "github.com/chronos-imaging/chronos/logger"
	"github.com/chronos-imaging/chronos/model"
)

// PathFor returns the sidecar path for a given image path.
func PathFor(imagePath string) string {
	return imagePath + model.SidecarFileSuffix
}

// Write marshals sidecar as indented UTF-8 JSON and writes it to
// PathFor(imagePath), overwriting any existing file.
func Write(imagePath string, sidecar model.ImageSidecar) error {
	log.Tracef(">>>>> Write, imagePath=%v", imagePath)
	defer log.Trace("<<<<< Write")

	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return cerrors.Wrap(cerrors.Unknown, err)
	}
	if err := os.WriteFile(PathFor(imagePath), data, 0o644); err != nil {
		return cerrors.Wrap(cerrors.IoFailed, err)
	}
	return nil
}

// Read loads and unmarshals the sidecar for imagePath.
func Read(imagePath string) (model.ImageSidecar, error) {
	log.Tracef(">>>>> Read, imagePath=%v", imagePath)
	defer log.Trace("<<<<< Read")

	data, err := os.ReadFile(PathFor(imagePath))
	if err != nil {
		if os.IsNotExist(err) {
			return model.ImageSidecar{}, cerrors.NewChronosErrorf(cerrors.NotFound, "sidecar not found for %v", imagePath)
		}
		return model.ImageSidecar{}, cerrors.Wrap(cerrors.IoFailed, err)
	}

	var sidecar model.ImageSidecar
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return model.ImageSidecar{}, cerrors.Wrap(cerrors.ImageCorrupt, err)
	}
	return sidecar, nil
}

// Remove deletes the sidecar for imagePath, if present. Used by rollback
// on a cancelled or failed backup job.
func Remove(imagePath string) error {
	err := os.Remove(PathFor(imagePath))
	if err != nil && !os.IsNotExist(err) {
		return cerrors.Wrap(cerrors.IoFailed, err)
	}
	return nil
}
