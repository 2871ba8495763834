/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package schema

import (
	"errors"
	"os"

	"github.com/gravwell/gcfg"
)

const maxBundleConfigSize = 4 * 1024 * 1024

var ErrBundleConfigTooLarge = errors.New("schema: bundle config file is too large")

// Bundle is the host-supplied collection of schema sources: paths to
// the api/mtproto/secret schema files, an arbitrary set of additional
// labeled sources, and a post-load upgrade hook for schema-version
// migration.
type Bundle interface {
	APISchemaPath() string
	MTProtoSchemaPath() string
	SecretSchemaPath() string
	Other() map[string]string
	Upgrade(*Registry) error
}

// otherSource is one `[other "label"]` section of a bundle config file.
type otherSource struct {
	Path string
}

// BundleConfig is a gcfg-parsed implementation of Bundle, in the same
// `CfgType`/`GetConfig` shape used for other gcfg-backed config
// sources in this codebase.
type BundleConfig struct {
	Global struct {
		Layer int
	}
	Schema struct {
		Api     string
		Mtproto string
		Secret  string
	}
	Other map[string]*otherSource
}

// LoadBundleConfig reads and parses a gcfg-format bundle config file.
func LoadBundleConfig(path string) (*BundleConfig, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.Size() > maxBundleConfigSize {
		return nil, ErrBundleConfigTooLarge
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg BundleConfig
	cfg.Global.Layer = AnyLayer
	if err := gcfg.ReadStringInto(&cfg, string(b)); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *BundleConfig) APISchemaPath() string     { return c.Schema.Api }
func (c *BundleConfig) MTProtoSchemaPath() string { return c.Schema.Mtproto }
func (c *BundleConfig) SecretSchemaPath() string  { return c.Schema.Secret }

func (c *BundleConfig) Other() map[string]string {
	out := make(map[string]string, len(c.Other))
	for label, src := range c.Other {
		if src != nil {
			out[label] = src.Path
		}
	}
	return out
}

// Upgrade is a no-op by default; hosts embed BundleConfig and override
// Upgrade to perform schema-version migration once load completes.
func (c *BundleConfig) Upgrade(*Registry) error { return nil }

// LoadBundle loads api/mtproto/secret (sharing one Registry, since
// mtproto constructors must resolve against the same namespace as api
// ones) plus every Other() source into its own labeled Registry, then
// invokes Upgrade.
func LoadBundle(l *Loader, b Bundle) (core *Registry, others map[string]*Registry, err error) {
	core = NewRegistry()
	for _, origin := range []struct {
		path   string
		origin Origin
	}{
		{b.APISchemaPath(), OriginAPI},
		{b.MTProtoSchemaPath(), OriginMTProto},
		{b.SecretSchemaPath(), OriginSecret},
	} {
		if origin.path == "" {
			continue
		}
		if err = loadInto(l, core, origin.path, origin.origin); err != nil {
			return nil, nil, err
		}
	}

	others = make(map[string]*Registry)
	for label, path := range b.Other() {
		origin := Origin(label)
		if !isKnownOrigin(origin) {
			l.reportUnknownOrigin(label)
		}
		reg := NewRegistry()
		if err = loadInto(l, reg, path, origin); err != nil {
			return nil, nil, err
		}
		others[label] = reg
	}

	if err = b.Upgrade(core); err != nil {
		return nil, nil, err
	}
	return core, others, nil
}

func loadInto(l *Loader, reg *Registry, path string, origin Origin) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	entries, err := l.Load(data, origin)
	if err != nil {
		return err
	}
	return reg.AddEntries(entries)
}
