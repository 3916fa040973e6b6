// Package seed loads the base product catalog on startup. The catalog ships
// embedded; SEED_CATALOG_YAML points at an override file for deployments
// that maintain their own list.
package seed

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tablecraft/tablecraft-backend/internal/data/repos"
	dm "github.com/tablecraft/tablecraft-backend/internal/domain/catalog"
	"github.com/tablecraft/tablecraft-backend/internal/platform/logger"
)

const catalogEnv = "SEED_CATALOG_YAML"

//go:embed catalog.yaml
var catalogFS embed.FS

type yamlCatalog struct {
	Catalog  string        `yaml:"catalog"`
	Version  int           `yaml:"version"`
	Products []yamlProduct `yaml:"products"`
}

type yamlProduct struct {
	Name       string   `yaml:"name"`
	Brand      string   `yaml:"brand"`
	Unit       string   `yaml:"unit"`
	Categories []string `yaml:"categories"`
}

// Catalog inserts every catalog product that is not already present,
// matching by exact name. Existing products are never modified.
func Catalog(ctx context.Context, factory *repos.Factory, log *logger.Logger) error {
	spec, err := loadCatalog()
	if err != nil {
		return err
	}

	created := 0
	_, err = factory.WithinTx(ctx, func(uow *repos.UnitOfWork) error {
		for _, yp := range spec.Products {
			rows, err := uow.Products.QueryRows(ctx, map[string]any{"name": yp.Name})
			if err != nil {
				return err
			}
			if len(rows) > 0 {
				continue
			}
			p, err := dm.NewProduct(yp.Name, yp.Brand, yp.Unit, yp.Categories)
			if err != nil {
				return err
			}
			uow.Products.Add(p)
			created++
		}
		return nil
	})
	if err != nil {
		return err
	}
	log.Info("seeded product catalog", "catalog", spec.Catalog, "version", spec.Version, "created", created)
	return nil
}

func loadCatalog() (*yamlCatalog, error) {
	data, err := readCatalog()
	if err != nil {
		return nil, err
	}
	var spec yamlCatalog
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, err
	}
	if err := validateCatalog(&spec); err != nil {
		return nil, err
	}
	return &spec, nil
}

func readCatalog() ([]byte, error) {
	if path := strings.TrimSpace(os.Getenv(catalogEnv)); path != "" {
		return os.ReadFile(path)
	}
	return catalogFS.ReadFile("catalog.yaml")
}

func validateCatalog(spec *yamlCatalog) error {
	if spec == nil {
		return errors.New("missing catalog")
	}
	if strings.TrimSpace(spec.Catalog) == "" {
		return errors.New("catalog name is required")
	}
	if len(spec.Products) == 0 {
		return errors.New("no products defined")
	}
	seen := map[string]bool{}
	for _, p := range spec.Products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			return errors.New("product name is required")
		}
		if seen[name] {
			return fmt.Errorf("duplicate product name: %s", name)
		}
		seen[name] = true
	}
	return nil
}
