package uploader

import (
	"os"
	"path"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const MetadataName = "data.yaml"

// Metadata is the dataset descriptor written to root/data.yaml before
// uploads begin.
type Metadata struct {
	Path        string   `yaml:"path"`
	Splits      []string `yaml:"splits,flow"`
	ClassCount  int      `yaml:"nc"`
	Names       []string `yaml:"names,flow"`
	DatasetType string   `yaml:"dataset_type"`
}

func NewMetadata(root string, splits, classes []string) (*Metadata, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Metadata{
		Path:        abs,
		Splits:      splits,
		ClassCount:  len(classes),
		Names:       classes,
		DatasetType: "classification",
	}, nil
}

// WriteMetadata marshals the descriptor and writes it under root,
// returning the file path.
func WriteMetadata(root string, splits, classes []string) (string, error) {
	md, err := NewMetadata(root, splits, classes)
	if err != nil {
		return "", err
	}
	bs, err := yaml.Marshal(md)
	if err != nil {
		return "", err
	}
	mdPath := path.Join(root, MetadataName)
	if err := os.WriteFile(mdPath, bs, 0o644); err != nil {
		return "", err
	}
	return mdPath, nil
}
