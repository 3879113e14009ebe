// Package catalog holds the reference lists used by the intake forms:
// staff, defenders, quick demand selections and statuses. The active catalog
// is swapped atomically and identified by an ETag, so readers never lock.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"gopkg.in/yaml.v3"
)

// Catalog is an immutable set of reference lists.
type Catalog struct {
	Servidores                   []string `yaml:"servidores" json:"servidores"`
	Defensores                   []string `yaml:"defensores" json:"defensores"`
	DefensoresComDemandasRapidas []string `yaml:"defensores_com_demandas_rapidas" json:"defensoresComDemandasRapidas"`
	DemandasRapidas              []string `yaml:"demandas_rapidas" json:"demandasRapidas"`
	Status                       []string `yaml:"status" json:"status"`
}

// StatusPendente is the status given to every newly registered demanda.
const StatusPendente = "Pendente"

// SelectionSeparator joins the quick selections of a demanda in the
// selecao_demanda column, so no quick selection may contain it.
const SelectionSeparator = ", "

// Default returns the lists the office used before the catalog was configurable.
func Default() Catalog {
	return Catalog{
		Servidores: []string{"THAIS", "RAYSSA", "WELDER"},
		Defensores: []string{
			"Dra. Ana Carolina 1DP", "Dr. Caio Cesar 2DP", "Dr. Matheus Rocha 3DP",
			"Dr. Emerson Halsey 4DP", "Dr. Matheus Bastos 5DP", "Dra. Janaína Araújo 6DP",
			"Orientação",
		},
		DefensoresComDemandasRapidas: []string{"Dra. Ana Carolina 1DP", "Dra. Janaína Araújo 6DP"},
		DemandasRapidas: []string{
			"Execução de Alimentos", "Alimentos", "Divórcio/RDU", "Inventário",
			"Alvará", "Curatela", "Cível geral", "Prazos geral",
		},
		Status: []string{StatusPendente, "Em andamento", "Concluída", "Arquivada"},
	}
}

// HasServidor reports whether name is a registered staff member.
func (c Catalog) HasServidor(name string) bool { return slices.Contains(c.Servidores, name) }

// HasDefensor reports whether name is a registered defender.
func (c Catalog) HasDefensor(name string) bool { return slices.Contains(c.Defensores, name) }

// HasStatus reports whether s is an accepted status.
func (c Catalog) HasStatus(s string) bool { return slices.Contains(c.Status, s) }

// OffersQuickSelection reports whether the defender's form shows quick demand selections.
func (c Catalog) OffersQuickSelection(defensor string) bool {
	return slices.Contains(c.DefensoresComDemandasRapidas, defensor)
}

// HasDemandaRapida reports whether d is one of the quick selections.
func (c Catalog) HasDemandaRapida(d string) bool { return slices.Contains(c.DemandasRapidas, d) }

// Validate checks the catalog is usable.
func (c Catalog) Validate() error {
	if len(c.Servidores) == 0 {
		return fmt.Errorf("catalog: servidores must not be empty")
	}
	if len(c.Defensores) == 0 {
		return fmt.Errorf("catalog: defensores must not be empty")
	}
	if !slices.Contains(c.Status, StatusPendente) {
		return fmt.Errorf("catalog: status must include %q", StatusPendente)
	}
	for _, d := range c.DefensoresComDemandasRapidas {
		if !c.HasDefensor(d) {
			return fmt.Errorf("catalog: defensor %q with quick selections is not in defensores", d)
		}
	}
	for _, d := range c.DemandasRapidas {
		if strings.TrimSpace(d) != d || d == "" {
			return fmt.Errorf("catalog: quick selection %q must be non-empty without surrounding spaces", d)
		}
		if strings.Contains(d, SelectionSeparator) {
			return fmt.Errorf("catalog: quick selection %q must not contain %q", d, SelectionSeparator)
		}
	}
	return nil
}

// LoadFile reads a YAML catalog. Lists missing from the file keep their defaults.
func LoadFile(path string) (Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("failed to read catalog file: %w", err)
	}
	c := Default()
	var fromFile Catalog
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return Catalog{}, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if len(fromFile.Servidores) > 0 {
		c.Servidores = fromFile.Servidores
	}
	if len(fromFile.Defensores) > 0 {
		c.Defensores = fromFile.Defensores
	}
	if fromFile.DefensoresComDemandasRapidas != nil {
		c.DefensoresComDemandasRapidas = fromFile.DefensoresComDemandasRapidas
	}
	if len(fromFile.DemandasRapidas) > 0 {
		c.DemandasRapidas = fromFile.DemandasRapidas
	}
	if len(fromFile.Status) > 0 {
		c.Status = fromFile.Status
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Snapshot is a published catalog with its ETag.
type Snapshot struct {
	ETag      string    `json:"etag"`
	Catalog   Catalog   `json:"catalog"`
	UpdatedAt time.Time `json:"updatedAt"`
}

var current atomic.Pointer[Snapshot]

// Load returns the active snapshot, or the default catalog if none was published.
func Load() *Snapshot {
	if s := current.Load(); s != nil {
		return s
	}
	return Build(Default())
}

// Update publishes s as the active snapshot. Subscribers are notified
// when the ETag changes.
func Update(s *Snapshot) {
	prev := current.Swap(s)
	if prev == nil || prev.ETag != s.ETag {
		publishUpdate(s.ETag)
	}
}

// Build wraps c in a snapshot with a content-derived ETag.
func Build(c Catalog) *Snapshot {
	return &Snapshot{
		ETag:      computeETag(c),
		Catalog:   c,
		UpdatedAt: time.Now().UTC(),
	}
}

func computeETag(c Catalog) string {
	b, _ := json.Marshal(c)
	return `W/"` + strconv.FormatUint(xxhash.Sum64(b), 16) + `"`
}
