package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/goodsign/monday"
)

// FormatSlot renders t in loc as "dia 01 de junho, às 15:00h".
func FormatSlot(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	month := strings.ToLower(monday.Format(lt, "January", monday.LocalePtBR))

	return fmt.Sprintf("dia %02d de %s, às %d:%02dh", lt.Day(), month, lt.Hour(), lt.Minute())
}
