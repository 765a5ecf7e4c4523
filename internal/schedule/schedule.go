// Package schedule вычисляет доступность склада по недельному графику работы.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule — недельный график работы склада. Время задаётся строками
// в формате "HH:mm", рабочие дни — индексами (0 = воскресенье … 6 = суббота).
type Schedule struct {
	OpenTime    string
	CloseTime   string
	WorkingDays []int
}

// Opening описывает день недели и время следующего открытия.
type Opening struct {
	Day  time.Weekday
	Time string
}

// Verdict — результат вычисления доступности на конкретный момент времени.
// NextOpening отсутствует, когда склад открыт сейчас или график пуст.
type Verdict struct {
	OperatingDay bool
	OpenNow      bool
	Headline     string
	Detail       string
	NextOpening  *Opening
}

// Заголовки вердикта.
const (
	HeadlineOpen        = "open"
	HeadlineClosedToday = "closed today"
	HeadlineClosed      = "closed"
)

// График по умолчанию: 08:00–18:00, понедельник–пятница.
// Применяется, когда время открытия или закрытия не разбирается как "HH:mm".
const (
	defaultOpenMinutes  = 8 * 60
	defaultCloseMinutes = 18 * 60
)

var defaultWorkingDays = [7]bool{
	time.Monday:    true,
	time.Tuesday:   true,
	time.Wednesday: true,
	time.Thursday:  true,
	time.Friday:    true,
}

// Evaluate вычисляет вердикт доступности для момента now.
// Функция чистая и никогда не возвращает ошибку: некорректный график
// заменяется графиком по умолчанию.
func Evaluate(s Schedule, now time.Time) Verdict {
	openMinutes, okOpen := parseClock(s.OpenTime)
	closeMinutes, okClose := parseClock(s.CloseTime)
	days := workingDaySet(s.WorkingDays)

	if !okOpen || !okClose {
		openMinutes = defaultOpenMinutes
		closeMinutes = defaultCloseMinutes
		days = defaultWorkingDays
	}

	today := int(now.Weekday())
	nowMinutes := now.Hour()*60 + now.Minute()
	openAt := formatClock(openMinutes)

	if !days[today] {
		_, day, ok := scanForward(days, today)
		if !ok {
			return Verdict{
				Headline: HeadlineClosed,
				Detail:   "no scheduled opening",
			}
		}
		return Verdict{
			Headline:    HeadlineClosedToday,
			Detail:      fmt.Sprintf("opens %s at %s", day, openAt),
			NextOpening: &Opening{Day: day, Time: openAt},
		}
	}

	switch {
	case nowMinutes < openMinutes:
		return Verdict{
			OperatingDay: true,
			Headline:     HeadlineClosed,
			Detail:       fmt.Sprintf("opens today at %s", openAt),
			NextOpening:  &Opening{Day: now.Weekday(), Time: openAt},
		}
	case nowMinutes < closeMinutes:
		// Интервал полуоткрытый: момент закрытия уже считается закрытым.
		return Verdict{
			OperatingDay: true,
			OpenNow:      true,
			Headline:     HeadlineOpen,
			Detail:       fmt.Sprintf("closes in %s", formatRemaining(closeMinutes-nowMinutes)),
		}
	default:
		offset, day, ok := scanForward(days, today)
		if !ok {
			return Verdict{
				OperatingDay: true,
				Headline:     HeadlineClosed,
				Detail:       "no scheduled opening",
			}
		}
		label := day.String()
		if offset == 1 {
			label = "tomorrow"
		}
		return Verdict{
			OperatingDay: true,
			Headline:     HeadlineClosed,
			Detail:       fmt.Sprintf("opens %s at %s", label, openAt),
			NextOpening:  &Opening{Day: day, Time: openAt},
		}
	}
}

// scanForward ищет ближайший будущий рабочий день. Поиск ограничен
// семью сутками, поэтому завершается даже при пустом графике.
func scanForward(days [7]bool, today int) (int, time.Weekday, bool) {
	for offset := 1; offset <= 7; offset++ {
		idx := (today + offset) % 7
		if days[idx] {
			return offset, time.Weekday(idx), true
		}
	}
	return 0, 0, false
}

func workingDaySet(days []int) [7]bool {
	var set [7]bool
	for _, d := range days {
		if d >= 0 && d <= 6 {
			set[d] = true
		}
	}
	return set
}

func parseClock(value string) (int, bool) {
	parts := strings.Split(value, ":")
	if len(parts) != 2 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func formatRemaining(minutes int) string {
	if minutes >= 60 {
		return fmt.Sprintf("%dh %dmin", minutes/60, minutes%60)
	}
	return fmt.Sprintf("%dmin", minutes)
}
