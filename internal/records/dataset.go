package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dataset is a bundle of collaborator records loaded from a file, used to
// seed the records database.
type Dataset struct {
	Alerts  []DisasterEvent `json:"alerts" yaml:"alerts"`
	Reports []Report        `json:"reports" yaml:"reports"`
	Posts   []CommunityPost `json:"posts" yaml:"posts"`
	News    []NewsArticle   `json:"news" yaml:"news"`
}

// Len returns the total number of records in the dataset.
func (d Dataset) Len() int {
	return len(d.Alerts) + len(d.Reports) + len(d.Posts) + len(d.News)
}

// LoadDataset reads a YAML (.yaml, .yml) or JSON (.json) dataset file.
func LoadDataset(path string) (Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, fmt.Errorf("records: read %s: %w", path, err)
	}

	var ds Dataset
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &ds); err != nil {
			return Dataset{}, fmt.Errorf("records: parse %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, &ds); err != nil {
			return Dataset{}, fmt.Errorf("records: parse %s: %w", path, err)
		}
	default:
		return Dataset{}, fmt.Errorf("records: unsupported dataset extension %q (use .yaml, .yml or .json)", ext)
	}

	if err := ds.validate(); err != nil {
		return Dataset{}, fmt.Errorf("records: %s: %w", path, err)
	}
	return ds, nil
}

// validate rejects records whose coordinates are out of range or that lack
// an ID, since both are needed by the store.
func (d Dataset) validate() error {
	check := func(kind string, i int, id string, p *Point) error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("%s[%d]: id is required", kind, i)
		}
		if p != nil && !p.Valid() {
			return fmt.Errorf("%s[%d] (%s): location %v out of range", kind, i, id, *p)
		}
		return nil
	}
	for i, a := range d.Alerts {
		if err := check("alerts", i, a.ID, &a.Location); err != nil {
			return err
		}
	}
	for i, r := range d.Reports {
		if err := check("reports", i, r.ID, &r.Location); err != nil {
			return err
		}
	}
	for i, p := range d.Posts {
		if err := check("posts", i, p.ID, &p.Location); err != nil {
			return err
		}
	}
	for i, n := range d.News {
		if err := check("news", i, n.ID, nil); err != nil {
			return err
		}
	}
	return nil
}
