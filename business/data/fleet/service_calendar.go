package fleet

import (
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/us"
)

// ServiceCalendar holds the holidays observed by the transit service. The schedule table has no holiday
// variant, so synthesis only reports the flag alongside its vehicles.
type ServiceCalendar struct {
	calendar *cal.BusinessCalendar
}

// NewServiceCalendar builds a ServiceCalendar with the US federal holidays a campus service observes
func NewServiceCalendar() *ServiceCalendar {
	calendar := cal.NewBusinessCalendar()
	calendar.AddHoliday(
		us.NewYear,
		us.MlkDay,
		us.MemorialDay,
		us.Juneteenth,
		us.IndependenceDay,
		us.LaborDay,
		us.ThanksgivingDay,
		us.ChristmasDay,
	)
	return &ServiceCalendar{calendar: calendar}
}

// IsHoliday returns true if at falls on an observed holiday. A nil calendar observes nothing
func (s *ServiceCalendar) IsHoliday(at time.Time) bool {
	if s == nil {
		return false
	}
	_, observed, _ := s.calendar.IsHoliday(at)
	return observed
}
