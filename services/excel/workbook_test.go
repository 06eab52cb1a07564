package excel

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/repoacademico/repositorio/core/report"
)

var now = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func projects() []report.Project {
	created := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return []report.Project{
		{ID: 1, Titulo: "Sistema de Biblioteca", Descripcion: "Inventario", Estado: report.EstadoAprobado, Tutor: "Docente Informatica",
			PromocionID: 1, Promocion: 2026, PromocionDescripcion: "Promoción 2026", EspecialidadID: 1, Especialidad: "Informatica",
			Calificacion: 9.5, Notas: 2, Memoria: true, Archivo: "memoria.pdf", Creado: created},
		{ID: 2, Titulo: "App de Asistencia", Estado: report.EstadoPendiente, Tutor: "Docente Informatica",
			PromocionID: 1, Promocion: 2026, PromocionDescripcion: "Promoción 2026", EspecialidadID: 1, Especialidad: "Informatica",
			Creado: created},
		{ID: 3, Titulo: "Balance General", Estado: report.EstadoFinalizado, Tutor: "Docente Contabilidad",
			PromocionID: 1, Promocion: 2026, EspecialidadID: 2, Especialidad: "Contabilidad y Administración Financiera",
			Calificacion: 6, Notas: 1, Creado: created},
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Reporte_Proyectos_2026-10-17.xlsx", FileName(now))
}

func TestSheetName(t *testing.T) {
	tests := []struct {
		name  string
		group report.Group
		want  string
	}{
		{"short", report.Group{Promocion: 2026, Especialidad: "Informatica"}, "2026 Informatica"},
		{"exactly 31", report.Group{Promocion: 2026, Especialidad: "Contabilidad Administrativ"}, "2026 Contabilidad Administrativ"},
		{"too long", report.Group{Promocion: 2026, Especialidad: "Contabilidad y Administración Financiera"}, "2026 Contabilidad y Administ..."},
		{"forbidden characters", report.Group{Promocion: 2026, Especialidad: `Dibujo: [2D]*?\`}, "2026 Dibujo- (2D)-"},
		{"slash only", report.Group{Promocion: 2025, Especialidad: "Mecánica/Autos"}, "2025 Mecánica-Autos"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SheetName(tt.group))
		})
	}
}

func TestBuild(t *testing.T) {
	f, err := Build(projects(), now)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f, err = excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SummarySheet, "2026 Contabilidad y Administ...", "2026 Informatica"}, f.GetSheetList())

	rows, err := f.GetRows(SummarySheet)
	require.NoError(t, err)
	assert.Equal(t, "RESUMEN GENERAL", rows[0][0])
	assert.Equal(t, []string{"Proyectos", "3"}, rows[5])
	assert.Equal(t, []string{"Con Memoria", "1"}, rows[6])
	assert.Equal(t, []string{"Calificados", "2"}, rows[7])
	assert.Equal(t, []string{"Promedio", "8.33"}, rows[8])
	assert.Equal(t, []string{"Generado:", "17/10/2026 09:30"}, rows[len(rows)-1])

	rows, err = f.GetRows("2026 Informatica")
	require.NoError(t, err)
	assert.Equal(t, "Informatica - Promoción 2026", rows[0][0])
	assert.Equal(t, "Promoción 2026", rows[1][0])
	assert.Equal(t, []string{"Proyecto", "Descripción", "Estado", "Tutor", "Calif.", "Notas", "Memoria", "Archivo", "Fecha"}, rows[3])
	assert.Equal(t, []string{"App de Asistencia", "", "pendiente", "Docente Informatica", "0.00", "0", "No", "", "02/03/2026"}, rows[4])
	assert.Equal(t, []string{"Sistema de Biblioteca", "Inventario", "aprobado", "Docente Informatica", "9.50", "2", "Sí", "memoria.pdf", "02/03/2026"}, rows[5])
	totals := rows[len(rows)-1]
	assert.Equal(t, "TOTALES:", totals[0])
	assert.Equal(t, "2 proyectos", totals[1])
	assert.Equal(t, "4.75", totals[4])
	assert.Equal(t, "1", totals[6])

	// no promotion description: header on row 3
	rows, err = f.GetRows("2026 Contabilidad y Administ...")
	require.NoError(t, err)
	assert.Equal(t, "Proyecto", rows[2][0])
}

func TestBuild_ForbiddenSheetCharacters(t *testing.T) {
	ps := projects()[:1]
	ps[0].Especialidad = "Electricidad/Electrónica"
	f, err := Build(ps, now)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SummarySheet, "2026 Electricidad-Electrónica"}, f.GetSheetList())
}

func TestBuild_Empty(t *testing.T) {
	f, err := Build(nil, now)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{SummarySheet}, f.GetSheetList())
}
