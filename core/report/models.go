// Package report groups live projects by promotion and specialty for the
// project workbook.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Project states as stored in proyectos.estado.
const (
	EstadoPendiente  = "pendiente"
	EstadoAprobado   = "aprobado"
	EstadoRechazado  = "rechazado"
	EstadoFinalizado = "finalizado"
)

var (
	// errors
	ErrSchemaNotMigrated = errors.New("projects are not grouped by promotion yet, run the cursos migration first")
)

type (
	Project struct {
		ID                   int       `db:"id"`
		Titulo               string    `db:"titulo"`
		Descripcion          string    `db:"descripcion"`
		Estado               string    `db:"estado"`
		Tutor                string    `db:"tutor"`
		PromocionID          int       `db:"promocion_id"`
		Promocion            int       `db:"promocion"`
		PromocionDescripcion string    `db:"promocion_descripcion"`
		EspecialidadID       int       `db:"especialidad_id"`
		Especialidad         string    `db:"especialidad"`
		Calificacion         float64   `db:"calificacion"` // average grade, 0 when ungraded
		Notas                int       `db:"notas"`
		Memoria              bool      `db:"memoria"`
		Archivo              string    `db:"archivo"`
		Creado               time.Time `db:"creado"`
	}

	// Group is the set of projects of one promotion and specialty.
	Group struct {
		PromocionID          int
		Promocion            int
		PromocionDescripcion string
		EspecialidadID       int
		Especialidad         string
		Projects             []Project
	}

	Summary struct {
		Promociones    int
		Especialidades int
		Proyectos      int
		ConMemoria     int
		Calificados    int
		Promedio       float64 // over every grade, not per project
		PorEstado      map[string]int
	}

	Repository interface {
		Projects(ctx context.Context) ([]Project, error)
	}
)

// AverageGrade is the mean of the group's project averages, ungraded projects included.
func (g Group) AverageGrade() float64 {
	if len(g.Projects) == 0 {
		return 0
	}
	var sum float64
	for _, p := range g.Projects {
		sum += p.Calificacion
	}
	return sum / float64(len(g.Projects))
}

func (g Group) WithMemoria() int {
	n := 0
	for _, p := range g.Projects {
		if p.Memoria {
			n++
		}
	}
	return n
}

// GroupProjects splits projects by promotion and specialty, newest promotion first,
// then specialty name, projects ordered by title.
func GroupProjects(projects []Project) []Group {
	type key struct{ promo, esp int }
	index := make(map[key]int)
	groups := make([]Group, 0)
	for _, p := range projects {
		k := key{p.PromocionID, p.EspecialidadID}
		i, ok := index[k]
		if !ok {
			i = len(groups)
			index[k] = i
			groups = append(groups, Group{
				PromocionID:          p.PromocionID,
				Promocion:            p.Promocion,
				PromocionDescripcion: p.PromocionDescripcion,
				EspecialidadID:       p.EspecialidadID,
				Especialidad:         p.Especialidad,
			})
		}
		groups[i].Projects = append(groups[i].Projects, p)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Promocion != groups[j].Promocion {
			return groups[i].Promocion > groups[j].Promocion
		}
		return groups[i].Especialidad < groups[j].Especialidad
	})
	for _, g := range groups {
		ps := g.Projects
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].Titulo < ps[j].Titulo })
	}
	return groups
}

func Summarize(projects []Project) Summary {
	sum := Summary{Proyectos: len(projects), PorEstado: make(map[string]int)}
	promos := make(map[int]bool)
	esps := make(map[int]bool)
	var total float64
	var grades int
	for _, p := range projects {
		promos[p.PromocionID] = true
		esps[p.EspecialidadID] = true
		sum.PorEstado[p.Estado]++
		if p.Memoria {
			sum.ConMemoria++
		}
		if p.Notas > 0 {
			sum.Calificados++
			total += p.Calificacion * float64(p.Notas)
			grades += p.Notas
		}
	}
	sum.Promociones = len(promos)
	sum.Especialidades = len(esps)
	if grades > 0 {
		sum.Promedio = total / float64(grades)
	}
	return sum
}
