package datasource

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/cascadegrid/pkg/debug"
	"github.com/vanderheijden86/cascadegrid/pkg/metrics"
	"github.com/vanderheijden86/cascadegrid/pkg/model"
)

// seedFile is the wrapped document form.
type seedFile struct {
	Options []model.OptionNode `json:"options" yaml:"options"`
}

// Load reads the entries of src in file order. Entries are not validated;
// pass them through Order or Apply.
func Load(ctx context.Context, src Source) ([]model.OptionNode, error) {
	defer metrics.Timer(metrics.SeedLoad)()
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		entries []model.OptionNode
		err     error
	)
	switch src.Type {
	case SourceTypeBuiltin:
		entries = DefaultSeed()
	case SourceTypeJSON, SourceTypeYAML:
		var data []byte
		data, err = os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed %s: %w", src.Path, err)
		}
		if src.Type == SourceTypeJSON {
			entries, err = ParseJSON(data)
		} else {
			entries, err = ParseYAML(data)
		}
	case SourceTypeSQLite:
		entries, err = loadSQLite(ctx, src.Path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, src.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", src, err)
	}

	debug.Log("datasource: loaded %d entries from %s", len(entries), src)
	debug.LogTiming("datasource: seed load", time.Since(start))
	return entries, nil
}

// ParseJSON decodes a bare list or an {"options": [...]} document.
func ParseJSON(data []byte) ([]model.OptionNode, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var list []model.OptionNode
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("parsing JSON seed: %w", err)
		}
		return list, nil
	}
	var doc seedFile
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, fmt.Errorf("parsing JSON seed: %w", err)
	}
	return doc.Options, nil
}

// ParseYAML is ParseJSON for YAML documents.
func ParseYAML(data []byte) ([]model.OptionNode, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parsing YAML seed: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	if doc.Kind == yaml.SequenceNode {
		var list []model.OptionNode
		if err := doc.Decode(&list); err != nil {
			return nil, fmt.Errorf("parsing YAML seed: %w", err)
		}
		return list, nil
	}
	var wrapped seedFile
	if err := doc.Decode(&wrapped); err != nil {
		return nil, fmt.Errorf("parsing YAML seed: %w", err)
	}
	return wrapped.Options, nil
}

// DefaultSeed returns the built-in forest: two chains 1.k -> 2.k -> ... -> 5.k.
func DefaultSeed() []model.OptionNode {
	var out []model.OptionNode
	for level := 1; level <= 5; level++ {
		for k := 1; k <= 2; k++ {
			n := model.OptionNode{ID: fmt.Sprintf("%d.%d", level, k)}
			if level > 1 {
				n.ParentID = fmt.Sprintf("%d.%d", level-1, k)
			}
			out = append(out, n)
		}
	}
	return out
}
