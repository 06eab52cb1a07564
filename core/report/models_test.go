package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProjects() []Project {
	return []Project{
		{ID: 1, Titulo: "Sistema de Biblioteca", Estado: EstadoAprobado, PromocionID: 1, Promocion: 2025, EspecialidadID: 1, Especialidad: "Informatica", Calificacion: 9, Notas: 2, Memoria: true},
		{ID: 2, Titulo: "App de Asistencia", Estado: EstadoPendiente, PromocionID: 2, Promocion: 2026, EspecialidadID: 1, Especialidad: "Informatica"},
		{ID: 3, Titulo: "Balance General", Estado: EstadoFinalizado, PromocionID: 2, Promocion: 2026, EspecialidadID: 2, Especialidad: "Contabilidad", Calificacion: 6, Notas: 1},
		{ID: 4, Titulo: "Agenda Escolar", Estado: EstadoRechazado, PromocionID: 2, Promocion: 2026, EspecialidadID: 1, Especialidad: "Informatica", Calificacion: 8, Notas: 1, Memoria: true},
	}
}

func TestGroupProjects(t *testing.T) {
	groups := GroupProjects(sampleProjects())
	require.Len(t, groups, 3)

	tests := []struct {
		promocion    int
		especialidad string
		titles       []string
	}{
		{2026, "Contabilidad", []string{"Balance General"}},
		{2026, "Informatica", []string{"Agenda Escolar", "App de Asistencia"}},
		{2025, "Informatica", []string{"Sistema de Biblioteca"}},
	}
	for i, tt := range tests {
		g := groups[i]
		assert.Equal(t, tt.promocion, g.Promocion)
		assert.Equal(t, tt.especialidad, g.Especialidad)
		titles := make([]string, 0, len(g.Projects))
		for _, p := range g.Projects {
			titles = append(titles, p.Titulo)
		}
		assert.Equal(t, tt.titles, titles)
	}

	assert.Equal(t, 4.0, groups[1].AverageGrade())
	assert.Equal(t, 1, groups[1].WithMemoria())
	assert.Empty(t, GroupProjects(nil))
}

func TestSummarize(t *testing.T) {
	sum := Summarize(sampleProjects())
	assert.Equal(t, 2, sum.Promociones)
	assert.Equal(t, 2, sum.Especialidades)
	assert.Equal(t, 4, sum.Proyectos)
	assert.Equal(t, 2, sum.ConMemoria)
	assert.Equal(t, 3, sum.Calificados)
	assert.InDelta(t, 8.0, sum.Promedio, 0.001) // (9*2 + 6 + 8) / 4
	assert.Equal(t, 1, sum.PorEstado[EstadoPendiente])

	assert.Zero(t, Summarize(nil).Promedio)
}
