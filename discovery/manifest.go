package discovery

import (
	"context"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/plugreg/ctxlog"
)

// ManifestExtension is the file suffix enumerated as a module.
const ManifestExtension = ".hcl"

// manifestSchema is the top-level structure of a manifest file, expecting
// one or more 'plugin' blocks.
type manifestSchema struct {
	Plugins []*pluginBlock `hcl:"plugin,block"`
}

// pluginBlock is a single 'plugin' block, captured for decoding.
type pluginBlock struct {
	Name     string         `hcl:"name,label"`
	Register string         `hcl:"register"`
	Metadata hcl.Expression `hcl:"metadata,optional"`
}

// pluginDecl is a fully decoded plugin declaration.
type pluginDecl struct {
	Name     string
	Register string
	Metadata map[string]cty.Value
}

// parseManifest decodes every plugin declaration in one manifest file.
func (l *Loader) parseManifest(ctx context.Context, path string) ([]pluginDecl, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing plugin manifest.", "path", path)

	file, diags := l.parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse manifest %s: %w", path, diags)
	}

	schema := &manifestSchema{}
	if diags := gohcl.DecodeBody(file.Body, nil, schema); diags.HasErrors() {
		return nil, fmt.Errorf("decode manifest %s: %w", path, diags)
	}

	decls := make([]pluginDecl, 0, len(schema.Plugins))
	for _, block := range schema.Plugins {
		if block.Register == "" {
			return nil, fmt.Errorf("manifest %s: plugin %q declares no register function", path, block.Name)
		}
		metadata, err := decodeMetadata(block.Metadata)
		if err != nil {
			return nil, fmt.Errorf("manifest %s: plugin %q: %w", path, block.Name, err)
		}
		decls = append(decls, pluginDecl{
			Name:     block.Name,
			Register: block.Register,
			Metadata: metadata,
		})
	}
	return decls, nil
}

// decodeMetadata evaluates an optional metadata attribute into a flat
// name-to-value map. Manifests are static declarations, so the expression
// is evaluated without any variable context.
func decodeMetadata(expr hcl.Expression) (map[string]cty.Value, error) {
	if expr == nil {
		return nil, nil
	}
	val, diags := expr.Value(nil)
	if diags.HasErrors() {
		return nil, fmt.Errorf("evaluate metadata: %w", diags)
	}
	if val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if !ty.IsObjectType() && !ty.IsMapType() {
		return nil, fmt.Errorf("metadata must be an object, got %s", ty.FriendlyName())
	}
	if val.LengthInt() == 0 {
		return nil, nil
	}
	return val.AsValueMap(), nil
}
