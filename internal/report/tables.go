package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"turnos/internal/domain"
	"turnos/internal/export"
)

var monthNames = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// MonthName returns the Spanish name used in printed reports.
func MonthName(m time.Month) string {
	if m < time.January || m > time.December {
		return "mes desconocido"
	}
	return monthNames[m-1]
}

var turnHeader = []string{"Fecha", "Hora", "Estado", "DNI", "Nombre"}

func turnRow(t domain.Turn) []string {
	v := domain.NewTurnView(t)
	return []string{v.Date, v.Slot, string(v.State), v.IdentityNumber, v.PersonName}
}

func turnsTable(title string, turns []domain.Turn) export.Table {
	rows := make([][]string, 0, len(turns))
	for _, t := range turns {
		rows = append(rows, turnRow(t))
	}
	return export.Table{Title: title, Header: turnHeader, Rows: rows}
}

func ByDateTable(date time.Time, groups []PersonTurns) export.Table {
	t := export.Table{
		Title:  "Turnos del " + domain.DateOf(date).Format(domain.DateLayout),
		Header: []string{"DNI", "Nombre", "Hora", "Estado"},
		Rows:   [][]string{},
	}
	for _, g := range groups {
		for _, turn := range g.Turns {
			t.Rows = append(t.Rows, []string{g.IdentityNumber, g.PersonName, turn.Slot, string(turn.State)})
		}
	}
	return t
}

func CancellationsTable(groups []PersonTurns, minCount int) export.Table {
	t := export.Table{
		Title:  fmt.Sprintf("Personas con %d o más cancelaciones", minCount),
		Header: []string{"DNI", "Nombre", "Cancelaciones", "Fechas"},
		Rows:   [][]string{},
	}
	for _, g := range groups {
		dates := make([]string, 0, len(g.Turns))
		for _, turn := range g.Turns {
			dates = append(dates, turn.Date.Format(domain.DateLayout)+" "+turn.Slot)
		}
		t.Rows = append(t.Rows, []string{g.IdentityNumber, g.PersonName, strconv.Itoa(g.Count), strings.Join(dates, " | ")})
	}
	return t
}

func CancelledInMonthTable(year int, month time.Month, turns []domain.Turn) export.Table {
	return turnsTable(fmt.Sprintf("Turnos cancelados en %s de %d", MonthName(month), year), turns)
}

func ConfirmedTable(from, to time.Time, turns []domain.Turn) export.Table {
	return turnsTable(fmt.Sprintf("Turnos confirmados del %s al %s",
		domain.DateOf(from).Format(domain.DateLayout), domain.DateOf(to).Format(domain.DateLayout)), turns)
}

func PersonHistoryTable(p domain.Person, turns []domain.Turn) export.Table {
	t := export.Table{
		Title:  fmt.Sprintf("Turnos de %s (DNI %s)", p.Name, p.IdentityNumber),
		Header: []string{"Fecha", "Hora", "Estado"},
		Rows:   make([][]string, 0, len(turns)),
	}
	for _, turn := range turns {
		t.Rows = append(t.Rows, []string{turn.Date.Format(domain.DateLayout), turn.Slot, string(turn.State)})
	}
	return t
}

func PersonStatusTable(statuses []PersonStatus) export.Table {
	t := export.Table{
		Title:  "Estado de las personas",
		Header: []string{"DNI", "Nombre", "Habilitada", "Puede sacar turno", "Estado"},
		Rows:   make([][]string, 0, len(statuses)),
	}
	for _, s := range statuses {
		t.Rows = append(t.Rows, []string{s.IdentityNumber, s.Name, yesNo(s.Enabled), yesNo(s.CanBook), s.Status})
	}
	return t
}

func DaySummaryTable(s DaySummary, states []domain.TurnState) export.Table {
	t := export.Table{
		Title:  "Resumen del " + s.Date,
		Header: []string{"Concepto", "Valor"},
		Rows: [][]string{
			{"Turnos", strconv.Itoa(s.Total)},
			{"Horarios ocupados", fmt.Sprintf("%d de %d", s.Occupied, s.Capacity)},
			{"Ocupación", s.Occupancy.StringFixed(2)},
		},
	}
	for _, st := range states {
		t.Rows = append(t.Rows, []string{string(st), strconv.Itoa(s.ByState[st])})
	}
	return t
}

func yesNo(b bool) string {
	if b {
		return "sí"
	}
	return "no"
}
