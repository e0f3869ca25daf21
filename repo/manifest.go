// Copyright 2025 Binaek Sarkar
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package repo

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/corint-run/corint/constants"
)

var (
	ErrManifestNotFound = errors.New("repository manifest not found")

	// ManifestFileName is "corint.pack.toml".
	ManifestFileName = constants.APPNAME + "." + constants.PackFileExtension
)

// Manifest is the repository's corint.pack.toml: identity, engine
// compatibility, and the deployment-level defaults read once at load.
type Manifest struct {
	SchemaVersion string            `toml:"schema_version"`
	Name          string            `toml:"name"`
	Version       string            `toml:"version,omitempty"`
	Description   string            `toml:"description,omitempty"`
	Engines       Engines           `toml:"engines"`
	Defaults      Defaults          `toml:"defaults,omitempty"`
	Metadata      map[string]string `toml:"metadata,omitempty"`

	Location string `toml:"-"` // directory containing the manifest
}

// Engines declares the engine version range this repository was authored
// against, as a semver constraint (e.g. ">= 0.1").
type Engines struct {
	Corint string `toml:"corint,omitempty"`
}

// Defaults carries request-level knobs the transport may not supply.
type Defaults struct {
	DeadlineMS      int   `toml:"deadline_ms,omitempty"`
	TraceBudget     int   `toml:"trace_budget_bytes,omitempty"`
	MaxVMsPerScript int32 `toml:"max_vms_per_script,omitempty"`
}

// LoadManifest locates and parses the manifest for root: the file itself,
// the directory containing it, or any ancestor directory.
func LoadManifest(root string) (*Manifest, error) {
	path, err := locateManifest(root)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "repo: reading manifest")
	}
	var m Manifest
	if err := toml.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrap(err, "repo: parsing manifest")
	}
	m.Location = filepath.Dir(path)

	if err := m.checkEngineCompat(); err != nil {
		return nil, err
	}
	return &m, nil
}

func (m *Manifest) checkEngineCompat() error {
	if m.Engines.Corint == "" {
		return nil
	}
	c, err := semver.NewConstraint(m.Engines.Corint)
	if err != nil {
		return errors.Wrapf(err, "repo: manifest engine constraint %q", m.Engines.Corint)
	}
	v, err := semver.NewVersion(constants.APPVERSION)
	if err != nil {
		return errors.Wrap(err, "repo: engine version")
	}
	if !c.Check(v) {
		return errors.Errorf("repo: repository requires engine %q, running %s", m.Engines.Corint, constants.APPVERSION)
	}
	return nil
}

func locateManifest(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", errors.New("repo: root is empty")
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", errors.Wrap(err, "repo: resolving root")
	}

	info, err := os.Stat(root)
	if err != nil {
		return "", errors.Wrap(err, "repo: locating manifest")
	}
	if !info.IsDir() {
		if info.Name() == ManifestFileName {
			return root, nil
		}
		root = filepath.Dir(root)
	}

	for {
		candidate := filepath.Join(root, ManifestFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(root)
		if parent == root || parent == "/" || (runtime.GOOS == "windows" && strings.HasSuffix(parent, `:\`)) {
			break
		}
		root = parent
	}
	return "", ErrManifestNotFound
}
