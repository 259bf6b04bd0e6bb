package pipeline

import (
	"path/filepath"

	"github.com/samber/oops"

	v1 "github.com/flanksource/gid-seminars/api/v1"
	"github.com/flanksource/gid-seminars/utils"
)

const (
	SettingsFile = "settings.toml"
	LabKeyFile   = "labkey.toml"
	SourcesFile  = "sources.toml"
)

// Load reads settings.toml, the optional labkey.toml and sources.toml from
// a configuration directory.
func Load(dir string) (v1.Settings, []v1.SourceConfig, error) {
	files := []string{filepath.Join(dir, SettingsFile)}
	labkey := filepath.Join(dir, LabKeyFile)
	if exists, err := utils.Exists(labkey); err != nil {
		return v1.Settings{}, nil, oops.In("config").With("path", labkey).Wrap(err)
	} else if exists {
		files = append(files, labkey)
	}

	settings, err := v1.ParseSettings(files...)
	if err != nil {
		return settings, nil, err
	}
	sources, err := v1.ParseSources(filepath.Join(dir, SourcesFile))
	if err != nil {
		return settings, nil, err
	}
	return settings, sources, nil
}
