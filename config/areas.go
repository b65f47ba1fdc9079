package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// AreaFile is the on-disk shape of config/areas/<uni>.yaml.
type AreaFile struct {
	University string   `yaml:"university"`
	Areas      []string `yaml:"areas"`
}

// LoadAreas reads every YAML file in dir into a university → area-slug map.
// A missing directory yields the built-in defaults so one-off runs work
// from any working directory.
func LoadAreas(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return defaultAreas(), nil
		}
		return nil, err
	}

	areas := make(map[string][]string)
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".yaml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}

		var file AreaFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse %s: %w", entry.Name(), err)
		}
		if file.University == "" || len(file.Areas) == 0 {
			continue
		}
		areas[file.University] = file.Areas
	}

	if len(areas) == 0 {
		return defaultAreas(), nil
	}
	return areas, nil
}

func defaultAreas() map[string][]string {
	return map[string][]string{
		"UNSW": {
			"newtown-nsw-2042",
			"eastgardens-nsw-2036",
			"pagewood-nsw-2035",
			"maroubra-nsw-2035",
			"kensington-nsw-2033",
			"kingsford-nsw-2032",
			"randwick-nsw-2031",
			"mascot-nsw-2020",
			"rosebery-nsw-2018",
			"zetland-nsw-2017",
		},
		"USYD": {
			"sydney-city-nsw",
			"wolli-creek-nsw-2205",
			"hurstville-nsw-2220",
			"burwood-nsw-2134",
			"newtown-nsw-2042",
			"glebe-nsw-2037",
			"waterloo-nsw-2017",
			"chippendale-nsw-2008",
			"ultimo-nsw-2007",
			"haymarket-nsw-2000",
		},
		"UTS": {
			"sydney-city-nsw",
			"ultimo-nsw-2007",
			"haymarket-nsw-2000",
			"pyrmont-nsw-2009",
			"chippendale-nsw-2008",
			"surry-hills-nsw-2010",
			"redfern-nsw-2016",
			"waterloo-nsw-2017",
			"glebe-nsw-2037",
			"newtown-nsw-2042",
		},
	}
}
