package config

import (
	"fmt"
	"os"
	"strings"

	api_models "gitlab.com/maplesense1/mpt.site_dashboard/src/production/MQT.Models/api"
	"gopkg.in/yaml.v3"
)

// LabelCatalogFile is the on-disk shape of LABEL_CATALOG_FILE
type LabelCatalogFile struct {
	Labels []string `yaml:"labels"`
}

// LoadLabelCatalog returns the label catalog. An empty path yields the
// built-in list; otherwise the file replaces it.
func LoadLabelCatalog(path string) ([]string, error) {
	if path == "" {
		return api_models.GetPredefinedLabels(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label catalog %s: %w", path, err)
	}

	var file LabelCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse label catalog %s: %w", path, err)
	}

	labels := make([]string, 0, len(file.Labels))
	seen := make(map[string]struct{}, len(file.Labels))
	for _, label := range file.Labels {
		label = strings.TrimSpace(label)
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("label catalog %s has no labels", path)
	}
	return labels, nil
}
